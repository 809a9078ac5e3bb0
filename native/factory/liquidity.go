package factory

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
	"crosshub/core/packet"
	"crosshub/core/types"
)

// RequestAddLiquidity asks the hub to deposit both sides of a known pair.
func (e *Engine) RequestAddLiquidity(ctx context.Context, caller Caller, params AddLiquidityParams) (Receipt, error) {
	return dispatch(e, request[*AddLiquidityRequest]{
		kind:    packet.KindAddLiquidity,
		caller:  caller,
		txID:    params.TxID,
		timeout: params.Timeout,
		check: func() (*AddLiquidityRequest, []TransferMessage, error) {
			if params.SlippageTolerance == 0 || params.SlippageTolerance > 100 {
				return nil, nil, fmt.Errorf("%w: %d not in [1, 100]", coreerrors.ErrInvalidSlippage, params.SlippageTolerance)
			}
			pair, err := params.Pair.Pair()
			if err != nil {
				return nil, nil, err
			}
			if _, ok, err := e.localPool(pair); err != nil {
				return nil, nil, err
			} else if !ok {
				return nil, nil, fmt.Errorf("%w: %s", coreerrors.ErrPairNotFound, pair)
			}
			if types.IsZero(params.Token1Liquidity) || types.IsZero(params.Token2Liquidity) {
				return nil, nil, coreerrors.ErrZeroAmount
			}

			var transfers []TransferMessage
			sides := []struct {
				token  types.TokenWithDenom
				amount *uint256.Int
			}{
				{params.Pair.Token1, params.Token1Liquidity},
				{params.Pair.Token2, params.Token2Liquidity},
			}
			for _, side := range sides {
				if err := e.checkDenom(ctx, side.token); err != nil {
					return nil, nil, err
				}
				msgs, err := e.collect(caller, side.token, side.amount)
				if err != nil {
					return nil, nil, err
				}
				transfers = append(transfers, msgs...)
			}
			return &AddLiquidityRequest{
				TxID:              params.TxID,
				Sender:            caller.Address,
				Pair:              params.Pair,
				Token1Liquidity:   types.CloneAmount(params.Token1Liquidity),
				Token2Liquidity:   types.CloneAmount(params.Token2Liquidity),
				SlippageTolerance: params.SlippageTolerance,
			}, transfers, nil
		},
		build: func(r *AddLiquidityRequest, p *packet.Packet) {
			// Amounts follow the request's token order, not the canonical one.
			p.AddLiquidity = &packet.AddLiquidity{
				Pair:              types.Pair{Token1: r.Pair.Token1.Token, Token2: r.Pair.Token2.Token},
				Token1Liquidity:   types.CloneAmount(r.Token1Liquidity),
				Token2Liquidity:   types.CloneAmount(r.Token2Liquidity),
				SlippageTolerance: r.SlippageTolerance,
			}
		},
	})
}

// RequestRemoveLiquidity asks the hub to burn an lp allocation and release
// the underlying tokens to the listed claimants, then to the requester.
func (e *Engine) RequestRemoveLiquidity(_ context.Context, caller Caller, params RemoveLiquidityParams) (Receipt, error) {
	return dispatch(e, request[*RemoveLiquidityRequest]{
		kind:    packet.KindRemoveLiquidity,
		caller:  caller,
		txID:    params.TxID,
		timeout: params.Timeout,
		check: func() (*RemoveLiquidityRequest, []TransferMessage, error) {
			if err := params.Pair.Validate(); err != nil {
				return nil, nil, err
			}
			pair := params.Pair.Canonical()
			if _, ok, err := e.localPool(pair); err != nil {
				return nil, nil, err
			} else if !ok {
				return nil, nil, fmt.Errorf("%w: %s", coreerrors.ErrPairNotFound, pair)
			}
			if types.IsZero(params.LpAllocation) {
				return nil, nil, coreerrors.ErrZeroAmount
			}
			claimants, err := e.claimants(caller.Address, params.CrossChainAddresses)
			if err != nil {
				return nil, nil, err
			}
			return &RemoveLiquidityRequest{
				TxID:                params.TxID,
				Sender:              caller.Address,
				Pair:                pair,
				LpAllocation:        types.CloneAmount(params.LpAllocation),
				CrossChainAddresses: claimants,
			}, nil, nil
		},
		build: func(r *RemoveLiquidityRequest, p *packet.Packet) {
			p.RemoveLiquidity = &packet.RemoveLiquidity{
				Pair:                r.Pair,
				LpAllocation:        types.CloneAmount(r.LpAllocation),
				CrossChainAddresses: r.CrossChainAddresses,
			}
		},
	})
}

// claimants validates the requested release targets and appends the
// requester on this chain without a limit, so that it receives whatever
// the others do not take.
func (e *Engine) claimants(requester string, requested []types.CrossChainUserWithLimit) ([]types.CrossChainUserWithLimit, error) {
	out := make([]types.CrossChainUserWithLimit, 0, len(requested)+1)
	for i, c := range requested {
		if err := c.User.Validate(); err != nil {
			return nil, fmt.Errorf("cross chain address %d: %w", i, err)
		}
		out = append(out, types.CrossChainUserWithLimit{User: c.User, Limit: cloneLimit(c.Limit)})
	}
	out = append(out, types.CrossChainUserWithLimit{
		User: types.CrossChainUser{Address: requester, ChainUID: e.cfg.ChainUID},
	})
	return out, nil
}

func cloneLimit(limit *uint256.Int) *uint256.Int {
	if limit == nil {
		return nil
	}
	return types.CloneAmount(limit)
}
