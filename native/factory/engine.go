package factory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/types"
	"crosshub/native/common"
)

var errNilState = errors.New("factory: state not configured")

const maxTxIDLength = 128

// Storage is the subset of the state manager used by the factory.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVHas(key []byte) (bool, error)
	KVDelete(key []byte) error
	KVPage(prefix, lower, upper []byte, skip, limit uint32, fn func(suffix, value []byte) error) error
}

// AllowList answers whether the escrow holding token accepts denom.
type AllowList interface {
	IsDenomAllowed(ctx context.Context, token types.Token, escrow string, denom types.TokenType) (bool, error)
}

// TransferBuilder produces the contract call that pulls amount of a smart
// token from the requester into the factory.
type TransferBuilder interface {
	CreateTransferMessage(denom types.TokenType, amount *uint256.Int, from, recipient string) (TransferMessage, error)
}

// Engine is the per-chain request lifecycle manager. It is stateless between
// steps: SetState binds the store of the current atomic step.
type Engine struct {
	cfg       Config
	state     Storage
	emitter   events.Emitter
	allow     AllowList
	transfers TransferBuilder
	pauses    common.PauseView
	nowFn     func() time.Time
}

// NewEngine constructs a factory engine for cfg. A zero timeout policy is
// replaced by the default one.
func NewEngine(cfg Config) *Engine {
	if cfg.Timeout == (TimeoutPolicy{}) {
		cfg.Timeout = DefaultTimeoutPolicy()
	}
	return &Engine{
		cfg:       cfg,
		emitter:   events.NoopEmitter{},
		transfers: TransferFromBuilder{},
		nowFn:     time.Now,
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.cfg
}

// SetState binds the store used by subsequent calls.
func (e *Engine) SetState(state Storage) {
	if e == nil {
		return
	}
	e.state = state
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetAllowList overrides the state-backed denomination allow-list.
func (e *Engine) SetAllowList(allow AllowList) {
	if e == nil {
		return
	}
	e.allow = allow
}

// SetTransferBuilder overrides the transfer_from message builder.
func (e *Engine) SetTransferBuilder(builder TransferBuilder) {
	if e == nil || builder == nil {
		return
	}
	e.transfers = builder
}

// SetPauses overrides the state-backed pause flags.
func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the clock used for expiries and quota epochs.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) now() time.Time {
	if e.nowFn == nil {
		return time.Now()
	}
	return e.nowFn()
}

func (e *Engine) pauseView() common.PauseView {
	if e.pauses != nil {
		return e.pauses
	}
	return statePauses{store: e.state}
}

func (e *Engine) allowList() AllowList {
	if e.allow != nil {
		return e.allow
	}
	return stateAllowList{store: e.state}
}

// IsPaused reports whether module is paused.
func (e *Engine) IsPaused(module string) bool {
	if e.ready() != nil {
		return false
	}
	return e.pauseView().IsPaused(module)
}

func validateTxID(txID string) error {
	if txID == "" || len(txID) > maxTxIDLength {
		return fmt.Errorf("%w: length must be 1..%d", coreerrors.ErrInvalidTxID, maxTxIDLength)
	}
	for _, r := range txID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == ':', r == '-':
		default:
			return fmt.Errorf("%w: %q", coreerrors.ErrInvalidTxID, txID)
		}
	}
	return nil
}

type statePauses struct {
	store Storage
}

func (p statePauses) IsPaused(module string) bool {
	if p.store == nil {
		return false
	}
	var paused bool
	ok, err := p.store.KVGet(pausedKey(module), &paused)
	if err != nil {
		return true
	}
	return ok && paused
}

type stateAllowList struct {
	store Storage
}

func (a stateAllowList) IsDenomAllowed(_ context.Context, token types.Token, _ string, denom types.TokenType) (bool, error) {
	if a.store == nil {
		return false, errNilState
	}
	return a.store.KVHas(denomKey(token, denom))
}

// TransferFromBuilder builds cw20-style transfer_from messages. Only smart
// tokens can be pulled this way.
type TransferFromBuilder struct{}

// CreateTransferMessage implements TransferBuilder.
func (TransferFromBuilder) CreateTransferMessage(denom types.TokenType, amount *uint256.Int, from, recipient string) (TransferMessage, error) {
	if !denom.IsSmart() {
		return TransferMessage{}, fmt.Errorf("%w: %s cannot be pulled by transfer", coreerrors.ErrUnsupportedDenom, denom.Key())
	}
	if types.IsZero(amount) {
		return TransferMessage{}, coreerrors.ErrZeroAmount
	}
	return TransferMessage{
		Contract:  denom.ContractAddress,
		From:      from,
		Recipient: recipient,
		Amount:    types.CloneAmount(amount),
	}, nil
}
