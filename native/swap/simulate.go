package swap

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
	"crosshub/core/types"
)

// Quote is a pool's answer to a swap simulation.
type Quote struct {
	AssetOut  types.Token  `json:"asset_out"`
	AmountOut *uint256.Int `json:"amount_out"`
}

// Pricer prices a swap entering at pool and continuing through next. The
// pricing curve lives behind this interface.
type Pricer interface {
	SimulateSwap(ctx context.Context, pool types.PoolID, assetIn types.Token, amountIn *uint256.Int, next []types.NextSwapVlp) (Quote, error)
}

// SimulateSwapRequest asks for the outcome of swapping AmountIn of AssetIn
// into AssetOut along Route.
type SimulateSwapRequest struct {
	AssetIn  types.Token          `json:"asset_in"`
	AmountIn *uint256.Int         `json:"amount_in"`
	AssetOut types.Token          `json:"asset_out"`
	Route    []types.NextSwapPair `json:"swaps"`
}

// Simulator validates a route and delegates pricing. It never mutates state.
type Simulator struct {
	validator *Validator
	pricer    Pricer
}

// NewSimulator wires a simulator.
func NewSimulator(validator *Validator, pricer Pricer) *Simulator {
	return &Simulator{validator: validator, pricer: pricer}
}

// SimulateSwap returns the expected output of req.
func (s *Simulator) SimulateSwap(ctx context.Context, req SimulateSwapRequest) (Quote, error) {
	if err := CheckRouteBoundaries(req.Route, req.AssetIn, req.AssetOut); err != nil {
		return Quote{}, err
	}
	if s == nil || s.pricer == nil {
		return Quote{}, fmt.Errorf("swap: pricer not configured")
	}
	resolved, err := s.validator.Validate(req.Route)
	if err != nil {
		return Quote{}, err
	}
	first, rest := resolved[0], resolved[1:]
	quote, err := s.pricer.SimulateSwap(ctx, first.Pool, req.AssetIn, types.CloneAmount(req.AmountIn), rest)
	if err != nil {
		if coreerrors.KindOf(err) != coreerrors.KindUnknown {
			return Quote{}, err
		}
		return Quote{}, fmt.Errorf("%w: %v", coreerrors.ErrPricing, err)
	}
	if quote.AssetOut != req.AssetOut {
		return Quote{}, fmt.Errorf("%w: pool returned %s, expected %s", coreerrors.ErrSwapOutputMismatch, quote.AssetOut, req.AssetOut)
	}
	if quote.AmountOut == nil {
		quote.AmountOut = new(uint256.Int)
	}
	return quote, nil
}
