package packet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
	"lukechampine.com/blake3"

	"crosshub/core/types"
)

// Request kinds carried between a factory and the hub.
const (
	KindPoolCreation    = "pool_creation"
	KindAddLiquidity    = "add_liquidity"
	KindRemoveLiquidity = "remove_liquidity"
	KindSwap            = "swap"
)

// Kinds lists every request kind.
var Kinds = []string{KindPoolCreation, KindAddLiquidity, KindRemoveLiquidity, KindSwap}

// Packet is an outbound request from a factory to the hub. ExpiresAt is a
// unix timestamp in seconds after which the transport must give up and
// report a timeout.
type Packet struct {
	Sequence  uint64               `json:"sequence"`
	Channel   string               `json:"channel"`
	Kind      string               `json:"kind"`
	Sender    types.CrossChainUser `json:"sender"`
	TxID      string               `json:"tx_id"`
	ExpiresAt uint64               `json:"expires_at"`

	PoolCreation    *PoolCreation    `json:"pool_creation,omitempty"`
	AddLiquidity    *AddLiquidity    `json:"add_liquidity,omitempty"`
	RemoveLiquidity *RemoveLiquidity `json:"remove_liquidity,omitempty"`
	Swap            *Swap            `json:"swap,omitempty"`
}

type PoolCreation struct {
	Pair types.Pair `json:"pair"`
}

type AddLiquidity struct {
	Pair              types.Pair   `json:"pair"`
	Token1Liquidity   *uint256.Int `json:"token_1_liquidity"`
	Token2Liquidity   *uint256.Int `json:"token_2_liquidity"`
	SlippageTolerance uint64       `json:"slippage_tolerance"`
}

type RemoveLiquidity struct {
	Pair                types.Pair                      `json:"pair"`
	LpAllocation        *uint256.Int                    `json:"lp_allocation"`
	CrossChainAddresses []types.CrossChainUserWithLimit `json:"cross_chain_addresses"`
}

type Swap struct {
	AssetIn             types.Token                     `json:"asset_in"`
	AmountIn            *uint256.Int                    `json:"amount_in"`
	AssetOut            types.Token                     `json:"asset_out"`
	MinAmountOut        *uint256.Int                    `json:"min_amount_out"`
	Swaps               []types.NextSwapPair            `json:"swaps"`
	CrossChainAddresses []types.CrossChainUserWithLimit `json:"cross_chain_addresses"`
}

// Validate checks that the body matches Kind.
func (p *Packet) Validate() error {
	if p == nil {
		return fmt.Errorf("packet: nil")
	}
	if p.TxID == "" {
		return fmt.Errorf("packet: tx id required")
	}
	var ok bool
	switch p.Kind {
	case KindPoolCreation:
		ok = p.PoolCreation != nil
	case KindAddLiquidity:
		ok = p.AddLiquidity != nil
	case KindRemoveLiquidity:
		ok = p.RemoveLiquidity != nil
	case KindSwap:
		ok = p.Swap != nil
	default:
		return fmt.Errorf("packet: unknown kind %q", p.Kind)
	}
	if !ok {
		return fmt.Errorf("packet: %s body missing", p.Kind)
	}
	return p.Sender.Validate()
}

// Expired reports whether the packet may no longer be delivered at now.
func (p *Packet) Expired(now int64) bool {
	return now >= 0 && uint64(now) >= p.ExpiresAt
}

// Commitment is the hex blake3 digest of the packet's JSON encoding. Relayers
// use it to recognise redeliveries.
func (p *Packet) Commitment() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Release is a payout the hub made from escrow while executing a request.
type Release struct {
	Token     types.Token          `json:"token"`
	Amount    *uint256.Int         `json:"amount"`
	Recipient types.CrossChainUser `json:"recipient"`
}

// Ack is the hub's answer to a packet.
type Ack struct {
	Success  bool         `json:"success"`
	Code     string       `json:"code,omitempty"`
	Error    string       `json:"error,omitempty"`
	Pool     types.PoolID `json:"vlp,omitempty"`
	Amount   *uint256.Int `json:"amount,omitempty"`
	Releases []Release    `json:"releases,omitempty"`
}

// Failure builds an unsuccessful ack.
func Failure(code, message string) Ack {
	return Ack{Success: false, Code: code, Error: message}
}

// Transport carries packets to the hub. Dispatch blocks until the hub
// answers or ctx ends; a context deadline is reported as an error.
type Transport interface {
	Dispatch(ctx context.Context, p Packet) (Ack, error)
}
