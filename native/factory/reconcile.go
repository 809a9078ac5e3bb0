package factory

import (
	"encoding/json"
	"fmt"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/packet"
	"crosshub/core/types"
	"crosshub/native/registry"
)

// Reconciliation outcomes reported in factory.reconciled events.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// OnAck settles the pending entry of p with the hub's answer. The entry and
// its outbox packet are removed; a successful pool creation makes the pair
// known locally. Nothing else changes: refunds of a failed request are
// driven by the emitted event.
func (e *Engine) OnAck(p packet.Packet, ack packet.Ack) error {
	entry, err := e.settle(p)
	if err != nil {
		return err
	}
	evt := events.FactoryReconciled{
		TxID:     p.TxID,
		Sender:   p.Sender.Address,
		Kind:     p.Kind,
		Status:   StatusFailure,
		Reason:   ack.Error,
		Releases: len(ack.Releases),
		Entry:    entry,
	}
	if ack.Success {
		evt.Status = StatusSuccess
		evt.Reason = ""
		if p.Kind == packet.KindPoolCreation && p.PoolCreation != nil {
			pool, err := e.markPool(p.PoolCreation.Pair, ack.Pool)
			if err != nil {
				return err
			}
			evt.Pool = pool
		}
	}
	e.emitter.Emit(evt)
	return nil
}

// OnTimeout settles the pending entry of p after the transport gave up on
// it.
func (e *Engine) OnTimeout(p packet.Packet) error {
	entry, err := e.settle(p)
	if err != nil {
		return err
	}
	e.emitter.Emit(events.FactoryExpired{TxID: p.TxID, Sender: p.Sender.Address, Kind: p.Kind, Entry: entry})
	return nil
}

func (e *Engine) settle(p packet.Packet) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	entry, err := e.pendingEntry(p.Kind, p.Sender.Address, p.TxID)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	if err := e.state.KVDelete(pendingKey(p.Kind, p.Sender.Address, p.TxID)); err != nil {
		return "", err
	}
	if err := e.state.KVDelete(txKey(p.Sender.Address, p.TxID)); err != nil {
		return "", err
	}
	if err := e.state.KVDelete(outboxKey(p.Sequence)); err != nil {
		return "", err
	}
	return string(raw), nil
}

func (e *Engine) pendingEntry(kind, requester, txID string) (interface{}, error) {
	var out interface{}
	switch kind {
	case packet.KindPoolCreation:
		out = new(PoolCreationRequest)
	case packet.KindAddLiquidity:
		out = new(AddLiquidityRequest)
	case packet.KindRemoveLiquidity:
		out = new(RemoveLiquidityRequest)
	case packet.KindSwap:
		out = new(SwapRequest)
	default:
		return nil, fmt.Errorf("factory: unknown request kind %q", kind)
	}
	ok, err := e.state.KVGet(pendingKey(kind, requester, txID), out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %s/%s", coreerrors.ErrPendingNotFound, kind, requester, txID)
	}
	return out, nil
}

func (e *Engine) markPool(pair types.Pair, pool types.PoolID) (types.PoolID, error) {
	if err := pair.Validate(); err != nil {
		return "", err
	}
	if pool == "" {
		pool = registry.DerivePoolID(pair)
	}
	if err := e.state.KVPut(localPairKey(pair), string(pool)); err != nil {
		return "", err
	}
	return pool, nil
}
