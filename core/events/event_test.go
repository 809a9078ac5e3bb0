package events

import (
	"testing"

	"github.com/holiman/uint256"

	"crosshub/core/types"
)

type recorder struct{ got []Event }

func (r *recorder) Emit(evt Event) { r.got = append(r.got, evt) }

func TestBufferFlushPreservesOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(FactoryTx{TxID: "1", Sender: "a", Kind: "swap"})
	buf.Emit(FactoryExpired{TxID: "1", Sender: "a", Kind: "swap"})

	rec := &recorder{}
	buf.Flush(rec)
	if len(rec.got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.got))
	}
	if rec.got[0].EventType() != TypeFactoryTx || rec.got[1].EventType() != TypeFactoryExpired {
		t.Fatalf("unexpected order: %s, %s", rec.got[0].EventType(), rec.got[1].EventType())
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("flush must clear the buffer")
	}
}

func TestBufferResetDropsEvents(t *testing.T) {
	var buf Buffer
	buf.Emit(FactoryTx{TxID: "1"})
	buf.Reset()
	rec := &recorder{}
	buf.Flush(rec)
	if len(rec.got) != 0 {
		t.Fatalf("expected no events after reset")
	}
}

func TestEscrowReleasedPayload(t *testing.T) {
	evt := EscrowReleased{
		Token:     "usdc",
		Recipient: types.CrossChainUser{Address: "0xabc", ChainUID: "ethereum"},
		Amount:    uint256.NewInt(20),
		Balance:   uint256.NewInt(10),
	}
	payload := evt.Event()
	if payload.Type != TypeEscrowReleased {
		t.Fatalf("unexpected type %s", payload.Type)
	}
	if payload.Attributes["amount"] != "20" || payload.Attributes["chainUid"] != "ethereum" {
		t.Fatalf("unexpected attributes: %v", payload.Attributes)
	}
	var _ Payload = evt
}

func TestFanoutEmitsToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Fanout{a, nil, b}.Emit(FactoryTx{TxID: "x"})
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("expected both emitters to receive the event")
	}
}
