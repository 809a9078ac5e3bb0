package swap

import (
	"errors"
	"fmt"

	coreerrors "crosshub/core/errors"
	"crosshub/core/types"
)

// PoolResolver resolves the pool serving a pair.
type PoolResolver interface {
	Pool(pair types.Pair) (types.PoolID, error)
}

// Validator resolves every hop of a route to its registered pool.
type Validator struct {
	pools PoolResolver
}

// NewValidator returns a validator backed by pools.
func NewValidator(pools PoolResolver) *Validator {
	return &Validator{pools: pools}
}

// Validate maps each hop to its pool in order. An empty route is rejected
// before any lookup, and a single unresolvable hop fails the whole route.
// The test-fail marker is carried through unchanged.
func (v *Validator) Validate(route []types.NextSwapPair) ([]types.NextSwapVlp, error) {
	if len(route) == 0 {
		return nil, coreerrors.ErrEmptyRoute
	}
	if v == nil || v.pools == nil {
		return nil, fmt.Errorf("swap: route validator not configured")
	}
	resolved := make([]types.NextSwapVlp, 0, len(route))
	for i, hop := range route {
		pair, err := types.NewPair(hop.TokenIn, hop.TokenOut)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		pool, err := v.pools.Pool(pair)
		if errors.Is(err, coreerrors.ErrPairNotFound) {
			return nil, fmt.Errorf("%w: hop %d (%s -> %s)", coreerrors.ErrUnregisteredPool, i, hop.TokenIn, hop.TokenOut)
		}
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		resolved = append(resolved, types.NextSwapVlp{Pool: pool, TestFail: hop.TestFail})
	}
	return resolved, nil
}

// CheckRouteBoundaries verifies that route starts at assetIn and ends at
// assetOut. The checks run in that order after the empty-route check.
func CheckRouteBoundaries(route []types.NextSwapPair, assetIn, assetOut types.Token) error {
	if len(route) == 0 {
		return coreerrors.ErrEmptyRoute
	}
	if route[0].TokenIn != assetIn {
		return fmt.Errorf("%w: route starts at %s, asset in is %s", coreerrors.ErrAssetInMismatch, route[0].TokenIn, assetIn)
	}
	if last := route[len(route)-1]; last.TokenOut != assetOut {
		return fmt.Errorf("%w: route ends at %s, asset out is %s", coreerrors.ErrAssetOutMismatch, last.TokenOut, assetOut)
	}
	return nil
}
