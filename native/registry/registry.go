package registry

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/types"
)

var errNilStore = errors.New("registry: state not configured")

// Storage is the subset of the state manager used by the registry.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVHas(key []byte) (bool, error)
	KVPage(prefix, lower, upper []byte, skip, limit uint32, fn func(suffix, value []byte) error) error
}

// PoolEntry is one row of the pool listing.
type PoolEntry struct {
	Pair types.Pair   `json:"pair"`
	Pool types.PoolID `json:"vlp"`
}

// ChainEntry is one row of the chain listing.
type ChainEntry struct {
	ChainUID types.ChainUID `json:"chain_uid"`
	Chain    types.Chain    `json:"chain"`
}

// Registry maps canonical pairs to pools and chain uids to chain metadata.
type Registry struct {
	store   Storage
	emitter events.Emitter
}

// New returns a registry over store.
func New(store Storage) *Registry {
	return &Registry{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// DerivePoolID returns the deterministic pool id used when a pool is
// registered without an explicit one.
func DerivePoolID(pair types.Pair) types.PoolID {
	sum := blake3.Sum256(pair.Key())
	return types.PoolID("vlp1" + hex.EncodeToString(sum[:20]))
}

// RegisterPool binds pair to pool. An empty pool id is derived from the pair.
// A pair may be registered once and a pool id may serve a single pair.
func (r *Registry) RegisterPool(pair types.Pair, pool types.PoolID) (types.PoolID, error) {
	if r == nil || r.store == nil {
		return "", errNilStore
	}
	if err := pair.Validate(); err != nil {
		return "", err
	}
	pair = pair.Canonical()
	pool = types.PoolID(strings.TrimSpace(string(pool)))
	if pool == "" {
		pool = DerivePoolID(pair)
	}
	exists, err := r.store.KVHas(pairPoolKey(pair))
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s", coreerrors.ErrPoolAlreadyExists, pair)
	}
	var owner []byte
	taken, err := r.store.KVGet(poolPairKey(pool), &owner)
	if err != nil {
		return "", err
	}
	if taken {
		return "", fmt.Errorf("%w: %s", coreerrors.ErrPoolIDInUse, pool)
	}
	if err := r.store.KVPut(pairPoolKey(pair), string(pool)); err != nil {
		return "", err
	}
	if err := r.store.KVPut(poolPairKey(pool), pair.Key()); err != nil {
		return "", err
	}
	if err := r.bump(poolCountKey); err != nil {
		return "", err
	}
	r.emitter.Emit(events.PoolRegistered{Pair: pair, Pool: pool})
	return pool, nil
}

// Pool resolves the pool serving pair in either token order.
func (r *Registry) Pool(pair types.Pair) (types.PoolID, error) {
	if r == nil || r.store == nil {
		return "", errNilStore
	}
	if err := pair.Validate(); err != nil {
		return "", err
	}
	var pool string
	ok, err := r.store.KVGet(pairPoolKey(pair), &pool)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", coreerrors.ErrPairNotFound, pair)
	}
	return types.PoolID(pool), nil
}

// HasPool reports whether pair is registered.
func (r *Registry) HasPool(pair types.Pair) (bool, error) {
	if r == nil || r.store == nil {
		return false, errNilStore
	}
	return r.store.KVHas(pairPoolKey(pair))
}

// PairOfPool resolves the reverse index.
func (r *Registry) PairOfPool(pool types.PoolID) (types.Pair, error) {
	if r == nil || r.store == nil {
		return types.Pair{}, errNilStore
	}
	var key []byte
	ok, err := r.store.KVGet(poolPairKey(pool), &key)
	if err != nil {
		return types.Pair{}, err
	}
	if !ok {
		return types.Pair{}, fmt.Errorf("%w: pool %s", coreerrors.ErrPairNotFound, pool)
	}
	return types.ParsePairKey(key)
}

// Pools lists registered pairs ascending by canonical pair.
func (r *Registry) Pools(page types.Pagination[types.Pair]) ([]PoolEntry, error) {
	if r == nil || r.store == nil {
		return nil, errNilStore
	}
	var lower, upper []byte
	if page.Min != nil {
		lower = page.Min.Key()
	}
	if page.Max != nil {
		upper = page.Max.Key()
	}
	out := make([]PoolEntry, 0)
	err := r.store.KVPage(pairPoolPrefix, lower, upper, page.Skip, page.PageLimit(), func(suffix, value []byte) error {
		pair, err := types.ParsePairKey(suffix)
		if err != nil {
			return err
		}
		var pool string
		if err := rlp.DecodeBytes(value, &pool); err != nil {
			return err
		}
		out = append(out, PoolEntry{Pair: pair, Pool: types.PoolID(pool)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PoolCount returns the number of registered pools.
func (r *Registry) PoolCount() (uint64, error) {
	return r.count(poolCountKey)
}

// RegisterChain records or replaces the metadata of uid.
func (r *Registry) RegisterChain(uid types.ChainUID, chain types.Chain) error {
	if r == nil || r.store == nil {
		return errNilStore
	}
	if err := uid.Validate(); err != nil {
		return err
	}
	exists, err := r.store.KVHas(chainKey(uid))
	if err != nil {
		return err
	}
	if err := r.store.KVPut(chainKey(uid), chain); err != nil {
		return err
	}
	if !exists {
		if err := r.bump(chainCountKey); err != nil {
			return err
		}
	}
	r.emitter.Emit(events.ChainRegistered{ChainUID: uid, ChainID: chain.ChainID})
	return nil
}

// Chain returns the metadata of uid.
func (r *Registry) Chain(uid types.ChainUID) (types.Chain, error) {
	if r == nil || r.store == nil {
		return types.Chain{}, errNilStore
	}
	if err := uid.Validate(); err != nil {
		return types.Chain{}, err
	}
	var chain types.Chain
	ok, err := r.store.KVGet(chainKey(uid), &chain)
	if err != nil {
		return types.Chain{}, err
	}
	if !ok {
		return types.Chain{}, fmt.Errorf("%w: %s", coreerrors.ErrChainNotFound, uid)
	}
	return chain, nil
}

// Chains lists registered chains ascending by uid.
func (r *Registry) Chains(page types.Pagination[types.ChainUID]) ([]ChainEntry, error) {
	if r == nil || r.store == nil {
		return nil, errNilStore
	}
	var lower, upper []byte
	if page.Min != nil {
		lower = []byte(*page.Min)
	}
	if page.Max != nil {
		upper = []byte(*page.Max)
	}
	out := make([]ChainEntry, 0)
	err := r.store.KVPage(chainPrefix, lower, upper, page.Skip, page.PageLimit(), func(suffix, value []byte) error {
		var chain types.Chain
		if err := rlp.DecodeBytes(value, &chain); err != nil {
			return err
		}
		out = append(out, ChainEntry{ChainUID: types.ChainUID(suffix), Chain: chain})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ChainCount returns the number of registered chains.
func (r *Registry) ChainCount() (uint64, error) {
	return r.count(chainCountKey)
}

func (r *Registry) count(key []byte) (uint64, error) {
	if r == nil || r.store == nil {
		return 0, errNilStore
	}
	var n uint64
	if _, err := r.store.KVGet(key, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Registry) bump(key []byte) error {
	n, err := r.count(key)
	if err != nil {
		return err
	}
	return r.store.KVPut(key, n+1)
}
