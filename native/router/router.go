package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/types"
	"crosshub/native/escrow"
	"crosshub/native/registry"
	"crosshub/native/swap"
)

var errNilState = errors.New("router: state not configured")

// Storage is the subset of the state manager used by the hub.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVHas(key []byte) (bool, error)
	KVDelete(key []byte) error
	KVPage(prefix, lower, upper []byte, skip, limit uint32, fn func(suffix, value []byte) error) error
}

// Withdrawal is what burning an lp allocation returns, in canonical pair
// order.
type Withdrawal struct {
	Token1Amount *uint256.Int `json:"token_1_amount"`
	Token2Amount *uint256.Int `json:"token_2_amount"`
}

// Pools is the liquidity pool collaborator. Quotes are read-only; the other
// calls change pool reserves and are made last in a step, after every local
// check passed.
type Pools interface {
	swap.Pricer
	ExecuteSwap(ctx context.Context, pool types.PoolID, assetIn types.Token, amountIn *uint256.Int, next []types.NextSwapVlp, quote swap.Quote) error
	AddLiquidity(ctx context.Context, pool types.PoolID, pair types.Pair, token1, token2 *uint256.Int, slippage uint64) (*uint256.Int, error)
	QuoteWithdrawal(ctx context.Context, pool types.PoolID, pair types.Pair, lp *uint256.Int) (Withdrawal, error)
	RemoveLiquidity(ctx context.Context, pool types.PoolID, pair types.Pair, lp *uint256.Int) error
}

// Config is the static configuration of the hub.
type Config struct {
	Admin string
}

// HubState summarises the hub for the state query.
type HubState struct {
	Admin      string `json:"admin"`
	ChainCount uint64 `json:"chain_count"`
	PoolCount  uint64 `json:"pool_count"`
	Locked     bool   `json:"locked"`
}

// Router is the hub façade: registry, escrow ledger, simulation and packet
// execution over one state handle.
type Router struct {
	cfg     Config
	state   Storage
	pools   Pools
	emitter events.Emitter
	nowFn   func() time.Time
}

// New constructs a hub router.
func New(cfg Config, pools Pools) *Router {
	return &Router{cfg: cfg, pools: pools, emitter: events.NoopEmitter{}, nowFn: time.Now}
}

// SetState binds the store used by subsequent calls.
func (r *Router) SetState(state Storage) {
	if r == nil {
		return
	}
	r.state = state
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Router) SetEmitter(emitter events.Emitter) {
	if r == nil {
		return
	}
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the clock used to reject expired packets.
func (r *Router) SetNowFunc(now func() time.Time) {
	if r == nil {
		return
	}
	if now == nil {
		r.nowFn = time.Now
		return
	}
	r.nowFn = now
}

func (r *Router) ready() error {
	if r == nil || r.state == nil {
		return errNilState
	}
	return nil
}

func (r *Router) registry() *registry.Registry {
	reg := registry.New(r.state)
	reg.SetEmitter(r.emitter)
	return reg
}

func (r *Router) ledger() *escrow.Ledger {
	l := escrow.NewLedger(r.state)
	l.SetEmitter(r.emitter)
	return l
}

func (r *Router) simulator() *swap.Simulator {
	return swap.NewSimulator(swap.NewValidator(r.registry()), r.pools)
}

func (r *Router) requireAdmin(caller string) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(caller) == "" || caller != r.cfg.Admin {
		return fmt.Errorf("%w: %s is not the hub admin", coreerrors.ErrUnauthorized, caller)
	}
	return nil
}

// RegisterChain records or replaces the metadata of a connected chain.
func (r *Router) RegisterChain(caller string, uid types.ChainUID, chain types.Chain) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	return r.registry().RegisterChain(uid, chain)
}

// RegisterPool binds a pair to a pool outside the packet flow.
func (r *Router) RegisterPool(caller string, pair types.Pair, pool types.PoolID) (types.PoolID, error) {
	if err := r.requireAdmin(caller); err != nil {
		return "", err
	}
	return r.registry().RegisterPool(pair, pool)
}

// DepositEscrow credits custodied funds that arrived outside a packet.
func (r *Router) DepositEscrow(caller string, token types.Token, chain types.ChainUID, amount *uint256.Int) (*uint256.Int, error) {
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	if _, err := r.registry().Chain(chain); err != nil {
		return nil, err
	}
	return r.ledger().Deposit(token, chain, amount)
}

// SetLocked toggles the hub lock. A locked hub rejects every packet.
func (r *Router) SetLocked(caller string, locked bool) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if !locked {
		return r.state.KVDelete(lockedKey)
	}
	return r.state.KVPut(lockedKey, true)
}

func (r *Router) locked() (bool, error) {
	var locked bool
	ok, err := r.state.KVGet(lockedKey, &locked)
	if err != nil {
		return false, err
	}
	return ok && locked, nil
}
