package server

import (
	"fmt"
	"sync"
	"time"

	"crosshub/core/events"
	"crosshub/core/state"
	"crosshub/native/factory"
	"crosshub/storage"
)

// Factory serialises factory steps over one database. Commands and relay
// callbacks each run inside a single transaction; events reach sink only
// after commit.
type Factory struct {
	db    storage.Database
	cfg   factory.Config
	sink  events.Emitter
	nowFn func() time.Time

	mu sync.Mutex
}

// NewFactory wires a factory over db.
func NewFactory(db storage.Database, cfg factory.Config, sink events.Emitter) *Factory {
	if sink == nil {
		sink = events.NoopEmitter{}
	}
	return &Factory{db: db, cfg: cfg, sink: sink, nowFn: time.Now}
}

// SetNowFunc overrides the clock handed to the engine.
func (f *Factory) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	f.nowFn = now
}

// Config returns the engine configuration.
func (f *Factory) Config() factory.Config { return f.cfg }

func (f *Factory) engine() *factory.Engine {
	e := factory.NewEngine(f.cfg)
	e.SetNowFunc(f.nowFn)
	return e
}

// Update runs fn as one atomic step.
func (f *Factory) Update(fn func(*factory.Engine) error) error {
	if f == nil || f.db == nil {
		return fmt.Errorf("factory: database not configured")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var buf events.Buffer
	e := f.engine()
	e.SetEmitter(&buf)
	err := state.Apply(f.db, func(m *state.Manager) error {
		e.SetState(m)
		return fn(e)
	})
	if err != nil {
		buf.Reset()
		return err
	}
	buf.Flush(f.sink)
	return nil
}

// View runs fn against the committed state.
func (f *Factory) View(fn func(*factory.Engine) error) error {
	if f == nil || f.db == nil {
		return fmt.Errorf("factory: database not configured")
	}
	e := f.engine()
	e.SetState(state.NewManager(f.db))
	return fn(e)
}
