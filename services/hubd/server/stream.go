package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"crosshub/core/events"
	"crosshub/core/types"
)

// Stream fans committed events out to websocket subscribers. Slow
// subscribers lose events rather than blocking the hub.
type Stream struct {
	buffer       int
	writeTimeout time.Duration
	logger       *slog.Logger

	mu   sync.Mutex
	subs map[chan types.Event]struct{}
}

func NewStream(buffer int, writeTimeout time.Duration, logger *slog.Logger) *Stream {
	if buffer <= 0 {
		buffer = 64
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{buffer: buffer, writeTimeout: writeTimeout, logger: logger, subs: make(map[chan types.Event]struct{})}
}

// Emit implements events.Emitter.
func (s *Stream) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	wire := types.Event{Type: evt.EventType()}
	if payload, ok := evt.(events.Payload); ok {
		if rendered := payload.Event(); rendered != nil {
			wire = *rendered
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- wire:
		default:
			s.logger.Warn("event stream subscriber lagging, dropping event", "kind", wire.Type)
		}
	}
}

func (s *Stream) subscribe() (chan types.Event, func()) {
	ch := make(chan types.Event, s.buffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

// Subscribers returns the number of connected clients.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// ServeHTTP upgrades the request and streams events as JSON text frames.
// The optional "type" query parameter filters by event type.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	filter := r.URL.Query().Get("type")

	ch, cancel := s.subscribe()
	defer cancel()
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			if filter != "" && evt.Type != filter {
				continue
			}
			if err := s.write(ctx, conn, evt); err != nil {
				if websocket.CloseStatus(err) == -1 {
					_ = conn.Close(websocket.StatusInternalError, "stream error")
				}
				return
			}
		}
	}
}

func (s *Stream) write(ctx context.Context, conn *websocket.Conn, evt types.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
