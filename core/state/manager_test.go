package state

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"crosshub/storage"
)

type record struct {
	Name   string
	Amount *uint256.Int
	Limit  *uint256.Int `rlp:"nil"`
}

func TestKVReadWrite(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	in := record{Name: "usdc", Amount: uint256.NewInt(42)}
	if err := mgr.KVPut([]byte("rec/1"), in); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out record
	ok, err := mgr.KVGet([]byte("rec/1"), &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Name != "usdc" || out.Amount.Uint64() != 42 {
		t.Fatalf("unexpected record: %+v", out)
	}
	if out.Limit != nil {
		t.Fatalf("expected nil limit to survive encoding, got %s", out.Limit)
	}

	ok, err = mgr.KVGet([]byte("rec/2"), &out)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key")
	}
}

func TestKVAppendDeduplicates(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	for _, v := range []string{"a", "b", "a"} {
		if err := mgr.KVAppend([]byte("list"), []byte(v)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	var list [][]byte
	if err := mgr.KVGetList([]byte("list"), &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}

	var empty [][]byte
	if err := mgr.KVGetList([]byte("missing"), &empty); err != nil {
		t.Fatalf("get empty list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice")
	}
}

func TestKVPrefixOrdersKeys(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	for _, k := range []string{"x/b", "x/a", "y/a", "x/c"} {
		if err := mgr.KVPut([]byte(k), k); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	var got []string
	err := mgr.KVPrefix([]byte("x/"), func(key, value []byte) (bool, error) {
		var s string
		if err := rlp.DecodeBytes(value, &s); err != nil {
			return false, err
		}
		got = append(got, s)
		return len(got) < 2, nil
	})
	if err != nil {
		t.Fatalf("prefix: %v", err)
	}
	if len(got) != 2 || got[0] != "x/a" || got[1] != "x/b" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestApplyIsAtomic(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	boom := errors.New("boom")
	err := Apply(db, func(m *Manager) error {
		if err := m.KVPut([]byte("a"), uint64(1)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected step error, got %v", err)
	}
	ok, err := NewManager(db).KVHas([]byte("a"))
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if ok {
		t.Fatalf("failed step must not leave writes behind")
	}

	if err := Apply(db, func(m *Manager) error { return m.KVPut([]byte("a"), uint64(1)) }); err != nil {
		t.Fatalf("apply: %v", err)
	}
	ok, _ = NewManager(db).KVHas([]byte("a"))
	if !ok {
		t.Fatalf("committed write missing")
	}
}

func TestEnsureStateVersion(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	if err := EnsureStateVersion(db, false); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch on empty state, got %v", err)
	}
	if err := NewManager(db).SetStateVersion(StateVersion); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := EnsureStateVersion(db, false); err != nil {
		t.Fatalf("ensure: %v", err)
	}
}

func TestKVPageWindow(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		if err := mgr.KVPut([]byte("p/"+k), k); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if err := mgr.KVPut([]byte("q/a"), "other"); err != nil {
		t.Fatalf("put: %v", err)
	}

	collect := func(lower, upper []byte, skip, limit uint32) []string {
		var out []string
		err := mgr.KVPage([]byte("p/"), lower, upper, skip, limit, func(suffix, _ []byte) error {
			out = append(out, string(suffix))
			return nil
		})
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		return out
	}

	if got := collect(nil, nil, 0, 10); len(got) != 5 || got[0] != "a" || got[4] != "e" {
		t.Fatalf("unexpected full page: %v", got)
	}
	if got := collect([]byte("b"), []byte("e"), 0, 10); len(got) != 3 || got[0] != "b" || got[2] != "d" {
		t.Fatalf("min inclusive / max exclusive violated: %v", got)
	}
	if got := collect(nil, nil, 1, 2); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("skip/limit violated: %v", got)
	}
	if got := collect([]byte("d"), []byte("b"), 0, 10); len(got) != 0 {
		t.Fatalf("inverted range must be empty: %v", got)
	}
}

func TestBootstrapStampsFreshDatabase(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	if err := Bootstrap(db, false); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	version, ok, err := NewManager(db).StateVersion()
	if err != nil || !ok || version != StateVersion {
		t.Fatalf("unexpected version %d ok=%v err=%v", version, ok, err)
	}
	if err := Apply(db, func(m *Manager) error { return m.SetStateVersion(StateVersion + 1) }); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := Bootstrap(db, false); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := Bootstrap(db, true); err != nil {
		t.Fatalf("migrate override: %v", err)
	}
}
