package factory

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/packet"
	"crosshub/core/types"
	"crosshub/native/swap"
)

// RequestSwap asks the hub to swap along params.Swaps. The partner fee is
// deducted from the input before anything else is checked.
func (e *Engine) RequestSwap(ctx context.Context, caller Caller, params SwapParams) (Receipt, error) {
	var fee *uint256.Int
	receipt, err := dispatch(e, request[*SwapRequest]{
		kind:    packet.KindSwap,
		caller:  caller,
		txID:    params.TxID,
		timeout: params.Timeout,
		volume:  quotaVolume(params.AmountIn),
		check: func() (*SwapRequest, []TransferMessage, error) {
			if err := params.PartnerFee.Validate(); err != nil {
				return nil, nil, err
			}
			fee = new(uint256.Int)
			if params.PartnerFee != nil {
				computed, err := types.MulBpsCeil(params.AmountIn, params.PartnerFee.PartnerFeeBps)
				if err != nil {
					return nil, nil, err
				}
				fee = computed
			}
			amountIn, err := types.CheckedSub(params.AmountIn, fee)
			if err != nil {
				return nil, nil, err
			}
			if amountIn.IsZero() || types.IsZero(params.MinAmountOut) {
				return nil, nil, coreerrors.ErrZeroAmount
			}
			if err := params.AssetIn.Validate(); err != nil {
				return nil, nil, err
			}
			if err := params.AssetOut.Validate(); err != nil {
				return nil, nil, err
			}
			if err := swap.CheckRouteBoundaries(params.Swaps, params.AssetIn.Token, params.AssetOut); err != nil {
				return nil, nil, err
			}
			if err := e.checkDenom(ctx, params.AssetIn); err != nil {
				return nil, nil, err
			}
			if params.AssetIn.TokenType.IsSmart() {
				if caller.TokenContract != params.AssetIn.TokenType.ContractAddress {
					return nil, nil, fmt.Errorf("%w: swap of %s must arrive through its token contract", coreerrors.ErrUnauthorized, params.AssetIn.Token)
				}
			} else if _, err := e.collect(caller, params.AssetIn, amountIn); err != nil {
				return nil, nil, err
			}
			claimants, err := e.claimants(caller.Address, params.CrossChainAddresses)
			if err != nil {
				return nil, nil, err
			}
			req := &SwapRequest{
				TxID:                params.TxID,
				Sender:              caller.Address,
				AssetIn:             params.AssetIn,
				AssetOut:            params.AssetOut,
				AmountIn:            amountIn,
				MinAmountOut:        types.CloneAmount(params.MinAmountOut),
				Swaps:               append([]types.NextSwapPair(nil), params.Swaps...),
				CrossChainAddresses: claimants,
				PartnerFeeAmount:    types.CloneAmount(fee),
			}
			if params.PartnerFee != nil {
				req.PartnerFeeRecipient = params.PartnerFee.Recipient
			}
			return req, nil, nil
		},
		build: func(r *SwapRequest, p *packet.Packet) {
			p.Swap = &packet.Swap{
				AssetIn:             r.AssetIn.Token,
				AmountIn:            types.CloneAmount(r.AmountIn),
				AssetOut:            r.AssetOut,
				MinAmountOut:        types.CloneAmount(r.MinAmountOut),
				Swaps:               r.Swaps,
				CrossChainAddresses: r.CrossChainAddresses,
			}
		},
	})
	if err != nil {
		return Receipt{}, err
	}
	if !fee.IsZero() {
		if err := e.accruePartnerFee(params.AssetIn.TokenType, fee); err != nil {
			return Receipt{}, err
		}
	}
	body := receipt.Packet.Swap
	e.emitter.Emit(events.FactorySwap{
		TxID:             params.TxID,
		Sender:           caller.Address,
		AssetIn:          body.AssetIn,
		AssetOut:         body.AssetOut,
		AmountIn:         body.AmountIn,
		MinAmountOut:     body.MinAmountOut,
		PartnerFeeAmount: fee,
		Hops:             len(body.Swaps),
	})
	return receipt, nil
}

func (e *Engine) accruePartnerFee(denom types.TokenType, amount *uint256.Int) error {
	fees, err := e.PartnerFees()
	if err != nil {
		return err
	}
	if err := fees.Add(denom.Key(), amount); err != nil {
		return err
	}
	return e.state.KVPut(partnerFeesKey, fees.Entries())
}

func quotaVolume(amount *uint256.Int) uint64 {
	if amount == nil {
		return 0
	}
	if !amount.IsUint64() {
		return ^uint64(0)
	}
	return amount.Uint64()
}
