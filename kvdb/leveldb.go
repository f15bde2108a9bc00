package kvdb

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Config of the on-disk database.
type Config struct {
	// Cache is the block cache size in MiB.
	Cache int
	// Handles is the number of open files.
	Handles int
}

// DefaultConfig for product.
func DefaultConfig() Config {
	return Config{
		Cache:   16,
		Handles: 64,
	}
}

// Database is a goleveldb-backed Store.
type Database struct {
	db *leveldb.DB
}

// Open opens (or creates) a database in dir.
func Open(dir string, cfg Config) (*Database, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{
		OpenFilesCacheCapacity: cfg.Handles,
		BlockCacheCapacity:     cfg.Cache / 2 * opt.MiB,
		WriteBuffer:            cfg.Cache / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if _, corrupted := err.(*lerrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", dir)
	}
	return &Database{db: db}, nil
}

// NewMemory returns an ephemeral database, used in tests and dry runs.
func NewMemory() *Database {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		// memory storage cannot fail to open
		panic(err)
	}
	return &Database{db: db}
}

func (d *Database) Has(key []byte) (bool, error) {
	return d.db.Has(key, nil)
}

func (d *Database) Get(key []byte) ([]byte, error) {
	val, err := d.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return val, err
}

func (d *Database) Put(key []byte, value []byte) error {
	return d.db.Put(key, value, nil)
}

func (d *Database) Delete(key []byte) error {
	return d.db.Delete(key, nil)
}

func (d *Database) NewIterator(prefix []byte, start []byte) Iterator {
	r := util.BytesPrefix(prefix)
	r.Start = append(append([]byte{}, r.Start...), start...)
	return d.db.NewIterator(r, nil)
}

func (d *Database) NewBatch() Batch {
	return &batch{db: d.db, b: new(leveldb.Batch)}
}

func (d *Database) Close() error {
	return d.db.Close()
}

type batch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *batch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int {
	return b.size
}

func (b *batch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}
