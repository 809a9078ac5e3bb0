package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/packet"
	"crosshub/core/state"
	"crosshub/native/router"
	"crosshub/observability"
	"crosshub/storage"
)

// Hub serialises hub steps over one database. Every command runs inside a
// single transaction; its events reach sink only after commit.
type Hub struct {
	db    storage.Database
	cfg   router.Config
	pools router.Pools
	sink  events.Emitter
	nowFn func() time.Time

	mu sync.Mutex
}

// NewHub wires a hub over db. sink receives committed events.
func NewHub(db storage.Database, cfg router.Config, pools router.Pools, sink events.Emitter) *Hub {
	if sink == nil {
		sink = events.NoopEmitter{}
	}
	return &Hub{db: db, cfg: cfg, pools: pools, sink: sink, nowFn: time.Now}
}

// SetNowFunc overrides the clock handed to the router.
func (h *Hub) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	h.nowFn = now
}

func (h *Hub) router() *router.Router {
	r := router.New(h.cfg, h.pools)
	r.SetNowFunc(h.nowFn)
	return r
}

// Update runs fn as one atomic step.
func (h *Hub) Update(fn func(*router.Router) error) error {
	if h == nil || h.db == nil {
		return fmt.Errorf("hub: database not configured")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf events.Buffer
	r := h.router()
	r.SetEmitter(&buf)
	err := state.Apply(h.db, func(m *state.Manager) error {
		r.SetState(m)
		return fn(r)
	})
	if err != nil {
		buf.Reset()
		return err
	}
	buf.Flush(h.sink)
	return nil
}

// View runs fn against the committed state.
func (h *Hub) View(fn func(*router.Router) error) error {
	if h == nil || h.db == nil {
		return fmt.Errorf("hub: database not configured")
	}
	r := h.router()
	r.SetState(state.NewManager(h.db))
	return fn(r)
}

// Deliver executes an inbound packet and returns the ack for the relayer.
// Classified failures are recorded so redeliveries get the same answer;
// unclassified ones are returned so the relayer retries.
func (h *Hub) Deliver(ctx context.Context, p packet.Packet) (packet.Ack, error) {
	start := h.nowFn()
	var ack packet.Ack
	err := h.Update(func(r *router.Router) error {
		var err error
		ack, err = r.Execute(ctx, p)
		return err
	})
	if err == nil {
		h.observe(p, ack, start)
		return ack, nil
	}
	if coreerrors.KindOf(err) == coreerrors.KindUnknown {
		return packet.Ack{}, err
	}
	if !recordable(err) {
		ack = router.FailureAck(err)
		h.observe(p, ack, start)
		return ack, nil
	}
	cause := err
	err = h.Update(func(r *router.Router) error {
		var err error
		ack, err = r.RecordFailure(p, cause)
		return err
	})
	if err != nil {
		return packet.Ack{}, err
	}
	h.observe(p, ack, start)
	return ack, nil
}

// recordable excludes failures tied to where the packet came from rather
// than what it asks for; the same tx may still arrive on the right channel.
func recordable(err error) bool {
	return !coreerrors.Is(err, coreerrors.ErrUnknownChannel) && !coreerrors.Is(err, coreerrors.ErrChainNotFound)
}

func (h *Hub) observe(p packet.Packet, ack packet.Ack, start time.Time) {
	metrics := observability.Hub()
	metrics.ObservePacket(p.Kind, ack.Success, ack.Code, h.nowFn().Sub(start))
	for _, rel := range ack.Releases {
		metrics.RecordRelease(string(rel.Token), string(rel.Recipient.ChainUID))
	}
}
