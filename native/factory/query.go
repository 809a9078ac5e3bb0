package factory

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "crosshub/core/errors"
	"crosshub/core/packet"
	"crosshub/core/types"
	"crosshub/native/registry"
)

// HubChannel returns the configured hub channel.
func (e *Engine) HubChannel() (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	var channel string
	ok, err := e.state.KVGet(hubChannelKey, &channel)
	if err != nil {
		return "", err
	}
	if !ok || channel == "" {
		return "", coreerrors.ErrHubChannelNotSet
	}
	return channel, nil
}

// State summarises the factory configuration.
func (e *Engine) State() (State, error) {
	if err := e.ready(); err != nil {
		return State{}, err
	}
	var channel string
	if _, err := e.state.KVGet(hubChannelKey, &channel); err != nil {
		return State{}, err
	}
	return State{
		ChainUID:   e.cfg.ChainUID,
		Address:    e.cfg.Address,
		Admin:      e.cfg.Admin,
		HubChannel: channel,
		Paused:     e.pauseView().IsPaused(ModuleName),
	}, nil
}

// EscrowOf returns the escrow address of token.
func (e *Engine) EscrowOf(token types.Token) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	var escrow string
	ok, err := e.state.KVGet(escrowKey(token), &escrow)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", coreerrors.ErrEscrowNotFound, token)
	}
	return escrow, nil
}

// AllowedDenoms lists the denominations accepted by token's escrow, ordered
// by their key.
func (e *Engine) AllowedDenoms(token types.Token, page types.Pagination[string]) ([]types.TokenType, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := token.Validate(); err != nil {
		return nil, err
	}
	lower, upper := stringBounds(page)
	out := make([]types.TokenType, 0)
	err := e.state.KVPage(denomTokenPrefix(token), lower, upper, page.Skip, page.PageLimit(), func(_, value []byte) error {
		var denom types.TokenType
		if err := rlp.DecodeBytes(value, &denom); err != nil {
			return err
		}
		out = append(out, denom)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PartnerFees returns the partner fees collected per denomination.
func (e *Engine) PartnerFees() (types.DenomFees, error) {
	if err := e.ready(); err != nil {
		return types.DenomFees{}, err
	}
	var entries []types.DenomFeeEntry
	if _, err := e.state.KVGet(partnerFeesKey, &entries); err != nil {
		return types.DenomFees{}, err
	}
	return types.DenomFeesFromEntries(entries), nil
}

// LocalPool returns the pool the hub created for pair.
func (e *Engine) LocalPool(pair types.Pair) (types.PoolID, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := pair.Validate(); err != nil {
		return "", err
	}
	pool, ok, err := e.localPool(pair)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", coreerrors.ErrPairNotFound, pair)
	}
	return pool, nil
}

// LocalPools lists the pairs known to this factory.
func (e *Engine) LocalPools(page types.Pagination[types.Pair]) ([]registry.PoolEntry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var lower, upper []byte
	if page.Min != nil {
		lower = page.Min.Key()
	}
	if page.Max != nil {
		upper = page.Max.Key()
	}
	out := make([]registry.PoolEntry, 0)
	err := e.state.KVPage(pairPrefix, lower, upper, page.Skip, page.PageLimit(), func(suffix, value []byte) error {
		pair, err := types.ParsePairKey(suffix)
		if err != nil {
			return err
		}
		var pool string
		if err := rlp.DecodeBytes(value, &pool); err != nil {
			return err
		}
		out = append(out, registry.PoolEntry{Pair: pair, Pool: types.PoolID(pool)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Outbox returns up to limit undelivered packets in sequence order.
func (e *Engine) Outbox(limit uint32) ([]packet.Packet, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = types.DefaultPageLimit
	}
	out := make([]packet.Packet, 0)
	err := e.state.KVPage(outboxPrefix, nil, nil, 0, limit, func(_, value []byte) error {
		var raw []byte
		if err := rlp.DecodeBytes(value, &raw); err != nil {
			return err
		}
		var p packet.Packet
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PendingPoolCreations lists the pool creations requester is waiting on,
// ordered by tx id.
func (e *Engine) PendingPoolCreations(requester string, page types.Pagination[string]) ([]PoolCreationRequest, error) {
	return listPending[PoolCreationRequest](e, packet.KindPoolCreation, requester, page)
}

// PendingAddLiquidity lists pending liquidity deposits of requester.
func (e *Engine) PendingAddLiquidity(requester string, page types.Pagination[string]) ([]AddLiquidityRequest, error) {
	return listPending[AddLiquidityRequest](e, packet.KindAddLiquidity, requester, page)
}

// PendingRemoveLiquidity lists pending liquidity withdrawals of requester.
func (e *Engine) PendingRemoveLiquidity(requester string, page types.Pagination[string]) ([]RemoveLiquidityRequest, error) {
	return listPending[RemoveLiquidityRequest](e, packet.KindRemoveLiquidity, requester, page)
}

// PendingSwaps lists pending swaps of requester.
func (e *Engine) PendingSwaps(requester string, page types.Pagination[string]) ([]SwapRequest, error) {
	return listPending[SwapRequest](e, packet.KindSwap, requester, page)
}

// PendingLiquidity groups both liquidity directions of requester.
type PendingLiquidity struct {
	Add    []AddLiquidityRequest    `json:"add"`
	Remove []RemoveLiquidityRequest `json:"remove"`
}

// PendingLiquidityOf returns the pending deposits and withdrawals of
// requester, each paginated with page.
func (e *Engine) PendingLiquidityOf(requester string, page types.Pagination[string]) (PendingLiquidity, error) {
	add, err := e.PendingAddLiquidity(requester, page)
	if err != nil {
		return PendingLiquidity{}, err
	}
	remove, err := e.PendingRemoveLiquidity(requester, page)
	if err != nil {
		return PendingLiquidity{}, err
	}
	return PendingLiquidity{Add: add, Remove: remove}, nil
}

func listPending[T any](e *Engine, kind, requester string, page types.Pagination[string]) ([]T, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := types.ValidateAddress(requester); err != nil {
		return nil, err
	}
	lower, upper := stringBounds(page)
	out := make([]T, 0)
	err := e.state.KVPage(pendingRequesterPrefix(kind, requester), lower, upper, page.Skip, page.PageLimit(), func(_, value []byte) error {
		var entry T
		if err := rlp.DecodeBytes(value, &entry); err != nil {
			return err
		}
		out = append(out, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stringBounds(page types.Pagination[string]) (lower, upper []byte) {
	if page.Min != nil {
		lower = []byte(*page.Min)
	}
	if page.Max != nil {
		upper = []byte(*page.Max)
	}
	return lower, upper
}
