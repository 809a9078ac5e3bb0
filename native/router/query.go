package router

import (
	"context"

	"github.com/holiman/uint256"

	"crosshub/core/types"
	"crosshub/native/escrow"
	"crosshub/native/registry"
	"crosshub/native/swap"
)

// State returns the hub summary.
func (r *Router) State() (HubState, error) {
	if err := r.ready(); err != nil {
		return HubState{}, err
	}
	reg := r.registry()
	chains, err := reg.ChainCount()
	if err != nil {
		return HubState{}, err
	}
	pools, err := reg.PoolCount()
	if err != nil {
		return HubState{}, err
	}
	locked, err := r.locked()
	if err != nil {
		return HubState{}, err
	}
	return HubState{Admin: r.cfg.Admin, ChainCount: chains, PoolCount: pools, Locked: locked}, nil
}

// Pools lists registered pools in canonical pair order.
func (r *Router) Pools(page types.Pagination[types.Pair]) ([]registry.PoolEntry, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.registry().Pools(page)
}

// Pool returns the pool serving pair.
func (r *Router) Pool(pair types.Pair) (types.PoolID, error) {
	if err := r.ready(); err != nil {
		return "", err
	}
	return r.registry().Pool(pair)
}

// Chains lists registered chains by uid.
func (r *Router) Chains(page types.Pagination[types.ChainUID]) ([]registry.ChainEntry, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.registry().Chains(page)
}

// Chain returns the metadata of a registered chain.
func (r *Router) Chain(uid types.ChainUID) (types.Chain, error) {
	if err := r.ready(); err != nil {
		return types.Chain{}, err
	}
	return r.registry().Chain(uid)
}

// SimulateSwap prices req without touching state.
func (r *Router) SimulateSwap(ctx context.Context, req swap.SimulateSwapRequest) (swap.Quote, error) {
	if err := r.ready(); err != nil {
		return swap.Quote{}, err
	}
	return r.simulator().SimulateSwap(ctx, req)
}

// SimulateEscrowRelease shows how amount of token would be paid out across
// claimants.
func (r *Router) SimulateEscrowRelease(token types.Token, amount *uint256.Int, claimants []types.CrossChainUserWithLimit) (escrow.Allocation, error) {
	if err := r.ready(); err != nil {
		return escrow.Allocation{}, err
	}
	return r.ledger().ReleaseAllocation(token, amount, claimants)
}

// TokenEscrows lists the escrow balance of token per chain.
func (r *Router) TokenEscrows(token types.Token, page types.Pagination[types.ChainUID]) ([]escrow.ChainBalance, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.ledger().TokenEscrows(token, page)
}

// AllTokens lists every (token, chain) pair holding an escrow entry.
func (r *Router) AllTokens(page types.Pagination[types.Token]) ([]escrow.TokenChain, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.ledger().Tokens(page)
}
