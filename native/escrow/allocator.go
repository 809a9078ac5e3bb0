package escrow

import (
	"github.com/holiman/uint256"

	"crosshub/core/types"
)

// BalanceReader exposes read access to escrow balances.
type BalanceReader interface {
	Balance(token types.Token, chain types.ChainUID) (*uint256.Int, error)
}

// Release is a single payout of an allocation.
type Release struct {
	Amount   *uint256.Int                  `json:"amount"`
	Claimant types.CrossChainUserWithLimit `json:"cross_chain_address"`
}

// Allocation is the outcome of distributing an amount across claimants.
// Remaining is the part no claimant could absorb.
type Allocation struct {
	Remaining *uint256.Int `json:"remaining_amount"`
	Releases  []Release    `json:"release_amounts"`
}

// Total returns the sum of all releases.
func (a Allocation) Total() *uint256.Int {
	total := new(uint256.Int)
	for _, r := range a.Releases {
		total.Add(total, r.Amount)
	}
	return total
}

// Allocate walks claimants in order and assigns each
// min(remaining, balance of token on the claimant's chain, claimant limit).
// Claimants that would receive nothing are skipped. Balances are only read.
func Allocate(balances BalanceReader, token types.Token, amount *uint256.Int, claimants []types.CrossChainUserWithLimit) (Allocation, error) {
	return allocate(balances, token, amount, claimants, nil)
}

// AllocateDrawdown is Allocate over a view of balances that shrinks as
// releases are assigned, so claimants sharing a chain never receive more
// than that chain holds in total. Its result can always be committed.
func AllocateDrawdown(balances BalanceReader, token types.Token, amount *uint256.Int, claimants []types.CrossChainUserWithLimit) (Allocation, error) {
	view := newDrawdown(balances)
	return allocate(view, token, amount, claimants, view.take)
}

// drawdown overlays the amounts already taken per (token, chain) on a
// BalanceReader.
type drawdown struct {
	base  BalanceReader
	taken map[string]*uint256.Int
}

func newDrawdown(base BalanceReader) *drawdown {
	return &drawdown{base: base, taken: make(map[string]*uint256.Int)}
}

func drawdownKey(token types.Token, chain types.ChainUID) string {
	return string(token) + "/" + string(chain)
}

func (d *drawdown) Balance(token types.Token, chain types.ChainUID) (*uint256.Int, error) {
	balance, err := d.base.Balance(token, chain)
	if err != nil {
		return nil, err
	}
	taken, ok := d.taken[drawdownKey(token, chain)]
	if !ok {
		return balance, nil
	}
	return types.CheckedSub(balance, taken)
}

func (d *drawdown) take(token types.Token, chain types.ChainUID, amount *uint256.Int) {
	key := drawdownKey(token, chain)
	if prev, ok := d.taken[key]; ok {
		d.taken[key] = new(uint256.Int).Add(prev, amount)
		return
	}
	d.taken[key] = types.CloneAmount(amount)
}

func allocate(balances BalanceReader, token types.Token, amount *uint256.Int, claimants []types.CrossChainUserWithLimit, onTake func(types.Token, types.ChainUID, *uint256.Int)) (Allocation, error) {
	remaining := types.CloneAmount(amount)
	releases := make([]Release, 0, len(claimants))
	for _, claimant := range claimants {
		balance, err := balances.Balance(token, claimant.User.ChainUID)
		if err != nil {
			return Allocation{}, err
		}
		take := types.MinAmount(remaining, balance)
		if claimant.Limit != nil {
			take = types.MinAmount(take, claimant.Limit)
		}
		if take.IsZero() {
			continue
		}
		next, err := types.CheckedSub(remaining, take)
		if err != nil {
			return Allocation{}, err
		}
		remaining = next
		if onTake != nil {
			onTake(token, claimant.User.ChainUID, take)
		}
		releases = append(releases, Release{Amount: take, Claimant: cloneClaimant(claimant)})
	}
	return Allocation{Remaining: remaining, Releases: releases}, nil
}

func cloneClaimant(c types.CrossChainUserWithLimit) types.CrossChainUserWithLimit {
	if c.Limit != nil {
		c.Limit = new(uint256.Int).Set(c.Limit)
	}
	return c
}
