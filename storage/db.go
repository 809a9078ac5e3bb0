package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Range bounds an iteration. Start is inclusive and Limit exclusive; a nil
// bound is open.
type Range struct {
	Start []byte
	Limit []byte
}

// PrefixRange returns the range covering every key that starts with prefix.
func PrefixRange(prefix []byte) Range {
	r := util.BytesPrefix(prefix)
	return Range{Start: r.Start, Limit: r.Limit}
}

// Store is the ordered key-value surface shared by the database and its
// transactions. Iteration is always in ascending byte order.
type Store interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	NewIterator(r Range) iterator.Iterator
}

// Tx is an atomic batch of writes. Nothing is visible to other readers until
// Commit succeeds; Discard drops every pending write.
type Tx interface {
	Store
	Commit() error
	Discard()
}

// Database is a key-value store that can open atomic transactions. Both the
// in-memory and the on-disk variants are backed by LevelDB so ordering and
// transaction semantics match between tests and production.
type Database interface {
	Store
	Begin() (Tx, error)
	Close() error
}

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

// NewMemDB opens a LevelDB instance on top of in-memory storage. It is used
// by tests and by daemons started without a data directory.
func NewMemDB() *LevelDB {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		// The memory backend cannot fail to open.
		panic(fmt.Sprintf("storage: open memory db: %v", err))
	}
	return &LevelDB{db: db}
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	return value, translate(err)
}

// Has reports whether the key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Delete removes the key. Deleting an absent key is not an error.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// NewIterator iterates the committed view of the database.
func (ldb *LevelDB) NewIterator(r Range) iterator.Iterator {
	return ldb.db.NewIterator(r.util(), nil)
}

// Begin opens a write transaction. LevelDB allows a single open transaction;
// concurrent callers block until the previous one commits or is discarded.
func (ldb *LevelDB) Begin() (Tx, error) {
	tx, err := ldb.db.OpenTransaction()
	if err != nil {
		return nil, fmt.Errorf("storage: open transaction: %w", err)
	}
	return &levelTx{tx: tx}, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() error {
	return ldb.db.Close()
}

type levelTx struct {
	tx *leveldb.Transaction
}

func (t *levelTx) Get(key []byte) ([]byte, error) {
	value, err := t.tx.Get(key, nil)
	return value, translate(err)
}

func (t *levelTx) Has(key []byte) (bool, error) { return t.tx.Has(key, nil) }

func (t *levelTx) Put(key []byte, value []byte) error { return t.tx.Put(key, value, nil) }

func (t *levelTx) Delete(key []byte) error { return t.tx.Delete(key, nil) }

func (t *levelTx) NewIterator(r Range) iterator.Iterator {
	return t.tx.NewIterator(r.util(), nil)
}

func (t *levelTx) Commit() error { return t.tx.Commit() }

func (t *levelTx) Discard() { t.tx.Discard() }

func (r Range) util() *util.Range {
	if r.Start == nil && r.Limit == nil {
		return nil
	}
	return &util.Range{Start: r.Start, Limit: r.Limit}
}

func translate(err error) error {
	if errors.Is(err, leveldb.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
