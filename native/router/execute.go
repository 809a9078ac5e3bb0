package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/packet"
	"crosshub/core/types"
	"crosshub/native/escrow"
	"crosshub/native/swap"
)

type executedRecord struct {
	Commitment string
	Ack        []byte
}

// FailureAck converts an execution error into the ack sent back to the
// factory.
func FailureAck(err error) packet.Ack {
	return packet.Failure(coreerrors.CodeOf(err), err.Error())
}

// Execute applies an inbound request packet. A returned error means nothing
// may be committed; the caller discards the step and answers with
// RecordFailure. A packet that was already answered gets the stored ack
// again.
func (r *Router) Execute(ctx context.Context, p packet.Packet) (packet.Ack, error) {
	if err := r.ready(); err != nil {
		return packet.Ack{}, err
	}
	if err := p.Validate(); err != nil {
		return packet.Ack{}, err
	}
	chain, err := r.registry().Chain(p.Sender.ChainUID)
	if err != nil {
		return packet.Ack{}, err
	}
	if chain.FromFactoryChannel != "" && p.Channel != chain.FromFactoryChannel {
		return packet.Ack{}, fmt.Errorf("%w: %s on %s, expected %s", coreerrors.ErrUnknownChannel, p.Sender.ChainUID, p.Channel, chain.FromFactoryChannel)
	}
	commitment, err := p.Commitment()
	if err != nil {
		return packet.Ack{}, err
	}
	if prior, ok, err := r.executed(p); err != nil {
		return packet.Ack{}, err
	} else if ok {
		if prior.Commitment != commitment {
			return packet.Ack{}, fmt.Errorf("%w: %s/%s was executed with different contents", coreerrors.ErrTxAlreadyExists, p.Sender.Address, p.TxID)
		}
		var ack packet.Ack
		if err := json.Unmarshal(prior.Ack, &ack); err != nil {
			return packet.Ack{}, err
		}
		return ack, nil
	}
	locked, err := r.locked()
	if err != nil {
		return packet.Ack{}, err
	}
	if locked {
		return packet.Ack{}, coreerrors.ErrHubLocked
	}
	if p.Expired(r.nowFn().Unix()) {
		return packet.Ack{}, fmt.Errorf("%w: expired at %d", coreerrors.ErrPacketExpired, p.ExpiresAt)
	}

	var ack packet.Ack
	switch p.Kind {
	case packet.KindPoolCreation:
		ack, err = r.executePoolCreation(p)
	case packet.KindAddLiquidity:
		ack, err = r.executeAddLiquidity(ctx, p)
	case packet.KindRemoveLiquidity:
		ack, err = r.executeRemoveLiquidity(ctx, p)
	case packet.KindSwap:
		ack, err = r.executeSwap(ctx, p)
	}
	if err != nil {
		return packet.Ack{}, err
	}
	if err := r.record(p, commitment, ack); err != nil {
		return packet.Ack{}, err
	}
	r.emitter.Emit(events.PacketExecuted{Kind: p.Kind, TxID: p.TxID, Sender: p.Sender, Success: true})
	return ack, nil
}

// RecordFailure stores the failure ack for p so redeliveries are answered
// the same way. It runs in its own step after the failed one was discarded.
func (r *Router) RecordFailure(p packet.Packet, cause error) (packet.Ack, error) {
	if err := r.ready(); err != nil {
		return packet.Ack{}, err
	}
	ack := FailureAck(cause)
	if err := p.Validate(); err != nil {
		return ack, nil
	}
	if _, ok, err := r.executed(p); err != nil {
		return packet.Ack{}, err
	} else if ok {
		return ack, nil
	}
	commitment, err := p.Commitment()
	if err != nil {
		return packet.Ack{}, err
	}
	if err := r.record(p, commitment, ack); err != nil {
		return packet.Ack{}, err
	}
	r.emitter.Emit(events.PacketExecuted{Kind: p.Kind, TxID: p.TxID, Sender: p.Sender, Success: false, Reason: ack.Error})
	return ack, nil
}

func (r *Router) executed(p packet.Packet) (executedRecord, bool, error) {
	var rec executedRecord
	ok, err := r.state.KVGet(executedKey(p.Sender.ChainUID, p.Sender.Address, p.Kind, p.TxID), &rec)
	return rec, ok, err
}

func (r *Router) record(p packet.Packet, commitment string, ack packet.Ack) error {
	raw, err := json.Marshal(ack)
	if err != nil {
		return err
	}
	return r.state.KVPut(executedKey(p.Sender.ChainUID, p.Sender.Address, p.Kind, p.TxID), executedRecord{Commitment: commitment, Ack: raw})
}

// Executed returns the stored ack of a packet, if it was answered.
func (r *Router) Executed(p packet.Packet) (packet.Ack, bool, error) {
	if err := r.ready(); err != nil {
		return packet.Ack{}, false, err
	}
	rec, ok, err := r.executed(p)
	if err != nil || !ok {
		return packet.Ack{}, false, err
	}
	var ack packet.Ack
	if err := json.Unmarshal(rec.Ack, &ack); err != nil {
		return packet.Ack{}, false, err
	}
	return ack, true, nil
}

func (r *Router) executePoolCreation(p packet.Packet) (packet.Ack, error) {
	pool, err := r.registry().RegisterPool(p.PoolCreation.Pair, "")
	if err != nil {
		return packet.Ack{}, err
	}
	return packet.Ack{Success: true, Pool: pool}, nil
}

func (r *Router) executeAddLiquidity(ctx context.Context, p packet.Packet) (packet.Ack, error) {
	body := p.AddLiquidity
	pair, err := types.NewPair(body.Pair.Token1, body.Pair.Token2)
	if err != nil {
		return packet.Ack{}, err
	}
	pool, err := r.registry().Pool(pair)
	if err != nil {
		return packet.Ack{}, err
	}
	if types.IsZero(body.Token1Liquidity) || types.IsZero(body.Token2Liquidity) {
		return packet.Ack{}, coreerrors.ErrZeroAmount
	}
	ledger := r.ledger()
	if _, err := ledger.Deposit(body.Pair.Token1, p.Sender.ChainUID, body.Token1Liquidity); err != nil {
		return packet.Ack{}, err
	}
	if _, err := ledger.Deposit(body.Pair.Token2, p.Sender.ChainUID, body.Token2Liquidity); err != nil {
		return packet.Ack{}, err
	}
	amount1, amount2 := body.Token1Liquidity, body.Token2Liquidity
	if pair.Token1 != body.Pair.Token1 {
		amount1, amount2 = amount2, amount1
	}
	lp, err := r.pools.AddLiquidity(ctx, pool, pair, types.CloneAmount(amount1), types.CloneAmount(amount2), body.SlippageTolerance)
	if err != nil {
		return packet.Ack{}, poolError(err)
	}
	return packet.Ack{Success: true, Pool: pool, Amount: lp}, nil
}

func (r *Router) executeRemoveLiquidity(ctx context.Context, p packet.Packet) (packet.Ack, error) {
	body := p.RemoveLiquidity
	if err := body.Pair.Validate(); err != nil {
		return packet.Ack{}, err
	}
	pair := body.Pair.Canonical()
	pool, err := r.registry().Pool(pair)
	if err != nil {
		return packet.Ack{}, err
	}
	if types.IsZero(body.LpAllocation) {
		return packet.Ack{}, coreerrors.ErrZeroAmount
	}
	withdrawal, err := r.pools.QuoteWithdrawal(ctx, pool, pair, types.CloneAmount(body.LpAllocation))
	if err != nil {
		return packet.Ack{}, poolError(err)
	}
	var releases []packet.Release
	for _, side := range []struct {
		token  types.Token
		amount *uint256.Int
	}{
		{pair.Token1, withdrawal.Token1Amount},
		{pair.Token2, withdrawal.Token2Amount},
	} {
		paid, err := r.release(side.token, side.amount, body.CrossChainAddresses)
		if err != nil {
			return packet.Ack{}, err
		}
		releases = append(releases, paid...)
	}
	if err := r.pools.RemoveLiquidity(ctx, pool, pair, types.CloneAmount(body.LpAllocation)); err != nil {
		return packet.Ack{}, poolError(err)
	}
	return packet.Ack{Success: true, Pool: pool, Releases: releases}, nil
}

func (r *Router) executeSwap(ctx context.Context, p packet.Packet) (packet.Ack, error) {
	body := p.Swap
	quote, err := r.simulator().SimulateSwap(ctx, swap.SimulateSwapRequest{
		AssetIn:  body.AssetIn,
		AmountIn: body.AmountIn,
		AssetOut: body.AssetOut,
		Route:    body.Swaps,
	})
	if err != nil {
		return packet.Ack{}, err
	}
	if quote.AmountOut.Lt(types.CloneAmount(body.MinAmountOut)) {
		return packet.Ack{}, fmt.Errorf("%w: got %s, want at least %s", coreerrors.ErrMinAmountOut, quote.AmountOut.Dec(), types.CloneAmount(body.MinAmountOut).Dec())
	}
	if _, err := r.ledger().Deposit(body.AssetIn, p.Sender.ChainUID, body.AmountIn); err != nil {
		return packet.Ack{}, err
	}
	releases, err := r.release(body.AssetOut, quote.AmountOut, body.CrossChainAddresses)
	if err != nil {
		return packet.Ack{}, err
	}
	resolved, err := swap.NewValidator(r.registry()).Validate(body.Swaps)
	if err != nil {
		return packet.Ack{}, err
	}
	if err := r.pools.ExecuteSwap(ctx, resolved[0].Pool, body.AssetIn, types.CloneAmount(body.AmountIn), resolved[1:], quote); err != nil {
		return packet.Ack{}, poolError(err)
	}
	return packet.Ack{Success: true, Pool: resolved[0].Pool, Amount: quote.AmountOut, Releases: releases}, nil
}

// release pays amount of token out of escrow to claimants. The whole amount
// must be covered; a shortfall fails the packet.
func (r *Router) release(token types.Token, amount *uint256.Int, claimants []types.CrossChainUserWithLimit) ([]packet.Release, error) {
	if types.IsZero(amount) {
		return nil, nil
	}
	ledger := r.ledger()
	alloc, err := ledger.SettlementAllocation(token, amount, claimants)
	if err != nil {
		return nil, err
	}
	if !alloc.Remaining.IsZero() {
		return nil, fmt.Errorf("%w: %s of %s %s cannot be released", coreerrors.ErrInsufficientEscrow, alloc.Remaining.Dec(), amount.Dec(), token)
	}
	if err := ledger.CommitRelease(token, alloc); err != nil {
		return nil, err
	}
	return toPacketReleases(token, alloc.Releases), nil
}

func toPacketReleases(token types.Token, releases []escrow.Release) []packet.Release {
	out := make([]packet.Release, 0, len(releases))
	for _, rel := range releases {
		out = append(out, packet.Release{Token: token, Amount: types.CloneAmount(rel.Amount), Recipient: rel.Claimant.User})
	}
	return out
}

func poolError(err error) error {
	if coreerrors.KindOf(err) != coreerrors.KindUnknown {
		return err
	}
	return fmt.Errorf("%w: %v", coreerrors.ErrPricing, err)
}

