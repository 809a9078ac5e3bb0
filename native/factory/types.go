package factory

import (
	"fmt"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
	"crosshub/core/packet"
	"crosshub/core/types"
	"crosshub/native/common"
)

// ModuleName is the pause-guard key of the factory.
const ModuleName = "factory"

// Timeout bounds in seconds.
const (
	DefaultTimeoutSeconds uint64 = 60
	MinTimeoutSeconds     uint64 = 30
	MaxTimeoutSeconds     uint64 = 240
)

// TimeoutPolicy resolves the requested packet timeout.
type TimeoutPolicy struct {
	Default uint64
	Min     uint64
	Max     uint64
}

// DefaultTimeoutPolicy returns the 60s default with a [30, 240] window.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{Default: DefaultTimeoutSeconds, Min: MinTimeoutSeconds, Max: MaxTimeoutSeconds}
}

// Resolve returns the timeout to use for requested, which may be nil.
func (p TimeoutPolicy) Resolve(requested *uint64) (uint64, error) {
	if requested == nil {
		return p.Default, nil
	}
	if *requested < p.Min || *requested > p.Max {
		return 0, fmt.Errorf("%w: %ds outside [%d, %d]", coreerrors.ErrInvalidTimeout, *requested, p.Min, p.Max)
	}
	return *requested, nil
}

// Validate checks that the default lies inside the window.
func (p TimeoutPolicy) Validate() error {
	if p.Min == 0 || p.Min > p.Max {
		return fmt.Errorf("factory: invalid timeout window [%d, %d]", p.Min, p.Max)
	}
	if p.Default < p.Min || p.Default > p.Max {
		return fmt.Errorf("factory: default timeout %d outside [%d, %d]", p.Default, p.Min, p.Max)
	}
	return nil
}

// Config is the static configuration of a factory.
type Config struct {
	ChainUID types.ChainUID
	// Address is the factory's own address; contract token transfers are
	// directed to it.
	Address string
	Admin   string
	Timeout TimeoutPolicy
	Quota   common.Quota
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.ChainUID.Validate(); err != nil {
		return err
	}
	if err := types.ValidateAddress(c.Address); err != nil {
		return fmt.Errorf("factory address: %w", err)
	}
	if err := types.ValidateAddress(c.Admin); err != nil {
		return fmt.Errorf("factory admin: %w", err)
	}
	return c.Timeout.Validate()
}

// Coin is an amount of a native denomination attached to a request.
type Coin struct {
	Denom  string       `json:"denom"`
	Amount *uint256.Int `json:"amount"`
}

// Caller identifies the requester of a command and the funds it attached.
// TokenContract is set when the request arrives through a token contract's
// receive hook; the contract has then already moved the tokens.
type Caller struct {
	Address       string `json:"address"`
	Funds         []Coin `json:"funds,omitempty"`
	TokenContract string `json:"token_contract,omitempty"`
}

func (c Caller) fundsOf(denom string) (*uint256.Int, bool) {
	for _, coin := range c.Funds {
		if coin.Denom == denom {
			return types.CloneAmount(coin.Amount), true
		}
	}
	return nil, false
}

// TransferMessage asks a token contract to move Amount from From to
// Recipient.
type TransferMessage struct {
	Contract  string       `json:"contract"`
	From      string       `json:"from"`
	Recipient string       `json:"recipient"`
	Amount    *uint256.Int `json:"amount"`
}

// Receipt describes an accepted request: the packet handed to the outbox and
// any token transfers the caller must see executed alongside it.
type Receipt struct {
	TxID      string            `json:"tx_id"`
	Kind      string            `json:"kind"`
	Packet    packet.Packet     `json:"packet"`
	Transfers []TransferMessage `json:"transfers,omitempty"`
}

// PoolCreationParams requests a new pool for a pair.
type PoolCreationParams struct {
	Pair    types.PairWithDenom `json:"pair"`
	Timeout *uint64             `json:"timeout,omitempty"`
	TxID    string              `json:"tx_id"`
}

// AddLiquidityParams requests a liquidity deposit.
type AddLiquidityParams struct {
	Pair              types.PairWithDenom `json:"pair_info"`
	Token1Liquidity   *uint256.Int        `json:"token_1_liquidity"`
	Token2Liquidity   *uint256.Int        `json:"token_2_liquidity"`
	SlippageTolerance uint64              `json:"slippage_tolerance"`
	Timeout           *uint64             `json:"timeout,omitempty"`
	TxID              string              `json:"tx_id"`
}

// RemoveLiquidityParams requests a liquidity withdrawal.
type RemoveLiquidityParams struct {
	Pair                types.Pair                      `json:"pair"`
	LpAllocation        *uint256.Int                    `json:"lp_allocation"`
	CrossChainAddresses []types.CrossChainUserWithLimit `json:"cross_chain_addresses"`
	Timeout             *uint64                         `json:"timeout,omitempty"`
	TxID                string                          `json:"tx_id"`
}

// SwapParams requests a swap along an explicit route.
type SwapParams struct {
	AssetIn             types.TokenWithDenom            `json:"asset_in"`
	AssetOut            types.Token                     `json:"asset_out"`
	AmountIn            *uint256.Int                    `json:"amount_in"`
	MinAmountOut        *uint256.Int                    `json:"min_amount_out"`
	Swaps               []types.NextSwapPair            `json:"swaps"`
	CrossChainAddresses []types.CrossChainUserWithLimit `json:"cross_chain_addresses"`
	PartnerFee          *types.PartnerFee               `json:"partner_fee,omitempty"`
	Timeout             *uint64                         `json:"timeout,omitempty"`
	TxID                string                          `json:"tx_id"`
}

// PoolCreationRequest is the pending entry of a pool creation.
type PoolCreationRequest struct {
	TxID      string              `json:"tx_id"`
	Sender    string              `json:"sender"`
	Pair      types.PairWithDenom `json:"pair_info"`
	ExpiresAt uint64              `json:"expires_at"`
}

// AddLiquidityRequest is the pending entry of a liquidity deposit.
type AddLiquidityRequest struct {
	TxID              string              `json:"tx_id"`
	Sender            string              `json:"sender"`
	Pair              types.PairWithDenom `json:"pair_info"`
	Token1Liquidity   *uint256.Int        `json:"token_1_liquidity"`
	Token2Liquidity   *uint256.Int        `json:"token_2_liquidity"`
	SlippageTolerance uint64              `json:"slippage_tolerance"`
	ExpiresAt         uint64              `json:"expires_at"`
}

// RemoveLiquidityRequest is the pending entry of a liquidity withdrawal.
type RemoveLiquidityRequest struct {
	TxID                string                          `json:"tx_id"`
	Sender              string                          `json:"sender"`
	Pair                types.Pair                      `json:"pair"`
	LpAllocation        *uint256.Int                    `json:"lp_allocation"`
	CrossChainAddresses []types.CrossChainUserWithLimit `json:"cross_chain_addresses"`
	ExpiresAt           uint64                          `json:"expires_at"`
}

// SwapRequest is the pending entry of a swap. AmountIn is net of the partner
// fee.
type SwapRequest struct {
	TxID                string                          `json:"tx_id"`
	Sender              string                          `json:"sender"`
	AssetIn             types.TokenWithDenom            `json:"asset_in"`
	AssetOut            types.Token                     `json:"asset_out"`
	AmountIn            *uint256.Int                    `json:"amount_in"`
	MinAmountOut        *uint256.Int                    `json:"min_amount_out"`
	Swaps               []types.NextSwapPair            `json:"swaps"`
	CrossChainAddresses []types.CrossChainUserWithLimit `json:"cross_chain_addresses"`
	PartnerFeeAmount    *uint256.Int                    `json:"partner_fee_amount"`
	PartnerFeeRecipient string                          `json:"partner_fee_recipient,omitempty"`
	ExpiresAt           uint64                          `json:"expires_at"`
}

func (r *PoolCreationRequest) setExpiry(at uint64)    { r.ExpiresAt = at }
func (r *AddLiquidityRequest) setExpiry(at uint64)    { r.ExpiresAt = at }
func (r *RemoveLiquidityRequest) setExpiry(at uint64) { r.ExpiresAt = at }
func (r *SwapRequest) setExpiry(at uint64)            { r.ExpiresAt = at }

// State summarises the factory for the state query.
type State struct {
	ChainUID   types.ChainUID `json:"chain_uid"`
	Address    string         `json:"address"`
	Admin      string         `json:"admin"`
	HubChannel string         `json:"hub_channel,omitempty"`
	Paused     bool           `json:"paused"`
}
