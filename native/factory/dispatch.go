package factory

import (
	"encoding/json"
	"fmt"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/packet"
	"crosshub/core/types"
	"crosshub/native/common"
)

type pendingRecord interface {
	setExpiry(at uint64)
}

// request describes one kind of cross-chain request to dispatch. check runs
// the kind-specific preconditions and returns the pending entry; build fills
// the packet body from it.
type request[T pendingRecord] struct {
	kind    string
	caller  Caller
	txID    string
	timeout *uint64
	volume  uint64
	check   func() (T, []TransferMessage, error)
	build   func(T, *packet.Packet)
}

// dispatch is the lifecycle shared by every request kind. A (requester, tx
// id) pair that is already pending is rejected before anything else is
// looked at; every other failure leaves no trace because the caller runs
// dispatch inside a single atomic step.
func dispatch[T pendingRecord](e *Engine, req request[T]) (Receipt, error) {
	if err := e.ready(); err != nil {
		return Receipt{}, err
	}
	marker := txKey(req.caller.Address, req.txID)
	var takenBy string
	taken, err := e.state.KVGet(marker, &takenBy)
	if err != nil {
		return Receipt{}, err
	}
	if taken {
		return Receipt{}, fmt.Errorf("%w: %s/%s is pending as %s", coreerrors.ErrTxAlreadyExists, req.caller.Address, req.txID, takenBy)
	}
	if err := common.Guard(e.pauseView(), ModuleName); err != nil {
		return Receipt{}, err
	}
	if err := validateTxID(req.txID); err != nil {
		return Receipt{}, err
	}
	if err := types.ValidateAddress(req.caller.Address); err != nil {
		return Receipt{}, err
	}

	record, transfers, err := req.check()
	if err != nil {
		return Receipt{}, err
	}

	channel, err := e.HubChannel()
	if err != nil {
		return Receipt{}, err
	}
	timeout, err := e.cfg.Timeout.Resolve(req.timeout)
	if err != nil {
		return Receipt{}, err
	}
	now := e.now().Unix()
	if err := e.consumeQuota(req.caller.Address, now, req.volume); err != nil {
		return Receipt{}, err
	}
	expiresAt := uint64(now) + timeout
	record.setExpiry(expiresAt)

	seq, err := e.nextSequence()
	if err != nil {
		return Receipt{}, err
	}
	pkt := packet.Packet{
		Sequence:  seq,
		Channel:   channel,
		Kind:      req.kind,
		Sender:    types.CrossChainUser{Address: req.caller.Address, ChainUID: e.cfg.ChainUID},
		TxID:      req.txID,
		ExpiresAt: expiresAt,
	}
	req.build(record, &pkt)
	if err := pkt.Validate(); err != nil {
		return Receipt{}, err
	}

	if err := e.state.KVPut(pendingKey(req.kind, req.caller.Address, req.txID), record); err != nil {
		return Receipt{}, err
	}
	if err := e.state.KVPut(marker, req.kind); err != nil {
		return Receipt{}, err
	}
	raw, err := json.Marshal(pkt)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.state.KVPut(outboxKey(seq), raw); err != nil {
		return Receipt{}, err
	}

	e.emitter.Emit(events.FactoryTx{TxID: req.txID, Sender: req.caller.Address, Kind: req.kind})
	return Receipt{TxID: req.txID, Kind: req.kind, Packet: pkt, Transfers: transfers}, nil
}

func (e *Engine) nextSequence() (uint64, error) {
	var seq uint64
	if _, err := e.state.KVGet(outboxSequenceKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := e.state.KVPut(outboxSequenceKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (e *Engine) consumeQuota(requester string, now int64, volume uint64) error {
	q := e.cfg.Quota
	if !q.Enabled() {
		return nil
	}
	var prev common.QuotaNow
	if _, err := e.state.KVGet(quotaKey(requester), &prev); err != nil {
		return err
	}
	next, err := common.CheckQuota(q, q.Epoch(now), prev, 1, volume)
	if err != nil {
		return err
	}
	return e.state.KVPut(quotaKey(requester), next)
}
