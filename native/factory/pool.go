package factory

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
	"crosshub/core/packet"
	"crosshub/core/types"
)

// RequestPoolCreation asks the hub to create a pool for params.Pair. The pair
// must not already be known to this factory.
func (e *Engine) RequestPoolCreation(_ context.Context, caller Caller, params PoolCreationParams) (Receipt, error) {
	return dispatch(e, request[*PoolCreationRequest]{
		kind:    packet.KindPoolCreation,
		caller:  caller,
		txID:    params.TxID,
		timeout: params.Timeout,
		check: func() (*PoolCreationRequest, []TransferMessage, error) {
			pair, err := params.Pair.Pair()
			if err != nil {
				return nil, nil, err
			}
			if _, ok, err := e.localPool(pair); err != nil {
				return nil, nil, err
			} else if ok {
				return nil, nil, fmt.Errorf("%w: %s", coreerrors.ErrPoolAlreadyExists, pair)
			}
			return &PoolCreationRequest{
				TxID:   params.TxID,
				Sender: caller.Address,
				Pair:   params.Pair,
			}, nil, nil
		},
		build: func(r *PoolCreationRequest, p *packet.Packet) {
			pair, _ := r.Pair.Pair()
			p.PoolCreation = &packet.PoolCreation{Pair: pair}
		},
	})
}

func (e *Engine) localPool(pair types.Pair) (types.PoolID, bool, error) {
	var pool string
	ok, err := e.state.KVGet(localPairKey(pair), &pool)
	if err != nil || !ok {
		return "", false, err
	}
	return types.PoolID(pool), true, nil
}

// checkDenom resolves the escrow of token and verifies that it accepts the
// offered denomination.
func (e *Engine) checkDenom(ctx context.Context, token types.TokenWithDenom) error {
	escrow, err := e.EscrowOf(token.Token)
	if err != nil {
		return err
	}
	allowed, err := e.allowList().IsDenomAllowed(ctx, token.Token, escrow, token.TokenType)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s for %s", coreerrors.ErrUnsupportedDenom, token.TokenType.Key(), token.Token)
	}
	return nil
}

// collect checks that the caller provides amount of token. Native tokens must
// be attached to the call; smart tokens are pulled with a transfer message.
func (e *Engine) collect(caller Caller, token types.TokenWithDenom, amount *uint256.Int) ([]TransferMessage, error) {
	if token.TokenType.IsNative() {
		funds, ok := caller.fundsOf(token.TokenType.Denom)
		if !ok || funds.Lt(amount) {
			return nil, fmt.Errorf("%w: %s %s required", coreerrors.ErrInsufficientDeposit, amount.Dec(), token.TokenType.Denom)
		}
		return nil, nil
	}
	msg, err := e.transfers.CreateTransferMessage(token.TokenType, amount, caller.Address, e.cfg.Address)
	if err != nil {
		return nil, err
	}
	return []TransferMessage{msg}, nil
}
