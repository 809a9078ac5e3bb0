package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"

	"crosshub/storage"
)

// Manager exposes RLP-encoded key-value access over an ordered store. Keys are
// stored verbatim so that prefix and range scans walk records in ascending key
// order.
type Manager struct {
	store storage.Store
}

// NewManager creates a state manager operating on the provided store. The
// store may be the database itself (read-only use) or an open transaction.
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// Apply runs step inside a single transaction. The writes performed through
// the supplied manager become visible only if step returns nil; any error
// discards them.
func Apply(db storage.Database, step func(*Manager) error) error {
	if db == nil {
		return fmt.Errorf("state: database unavailable")
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := step(NewManager(tx)); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		tx.Discard()
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// KVPut stores the RLP encoding of value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.store.Put(key, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.store.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVHas reports whether key is present.
func (m *Manager) KVHas(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	return m.store.Has(key)
}

// KVDelete removes key. Removing an absent key is a no-op.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.store.Delete(key)
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList decodes the list stored under key into out. A missing key yields
// an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	ok, err := m.KVGet(key, out)
	if err != nil || ok {
		return err
	}
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	return nil
}

// KVIterate walks every key in [start, limit) in ascending order. fn receives
// the raw key and encoded value; decode with rlp.DecodeBytes. Returning false
// stops the walk. Key and value slices are only valid during the callback.
func (m *Manager) KVIterate(start, limit []byte, fn func(key, value []byte) (bool, error)) error {
	it := m.store.NewIterator(storage.Range{Start: start, Limit: limit})
	defer it.Release()
	for it.Next() {
		more, err := fn(it.Key(), it.Value())
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return it.Error()
}

// KVPrefix walks every key under prefix in ascending order.
func (m *Manager) KVPrefix(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	r := storage.PrefixRange(prefix)
	return m.KVIterate(r.Start, r.Limit, fn)
}

// KVPage walks the keys under prefix whose suffix lies in [lower, upper), in
// ascending order. The first skip matches are dropped and at most limit are
// passed to fn, which receives the suffix with the prefix removed. Nil bounds
// are open.
func (m *Manager) KVPage(prefix, lower, upper []byte, skip, limit uint32, fn func(suffix, value []byte) error) error {
	if limit == 0 {
		return nil
	}
	if lower != nil && upper != nil && bytes.Compare(lower, upper) >= 0 {
		return nil
	}
	bounds := storage.PrefixRange(prefix)
	start := bounds.Start
	if lower != nil {
		start = concatKey(prefix, lower)
	}
	end := bounds.Limit
	if upper != nil {
		end = concatKey(prefix, upper)
	}
	var seen, emitted uint32
	return m.KVIterate(start, end, func(key, value []byte) (bool, error) {
		if seen < skip {
			seen++
			return true, nil
		}
		if err := fn(key[len(prefix):], value); err != nil {
			return false, err
		}
		emitted++
		return emitted < limit, nil
	})
}

func concatKey(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
