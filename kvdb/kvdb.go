// Package kvdb is the key-value storage layer shared by the ledger, the
// escrow and the token book.
package kvdb

import (
	"errors"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("not found")

// Reader reads from the key-value store.
type Reader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// Writer mutates the key-value store.
type Writer interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Iteratee creates prefix iterators.
type Iteratee interface {
	// NewIterator iterates keys with the given prefix in ascending order,
	// starting at prefix+start.
	NewIterator(prefix []byte, start []byte) Iterator
}

// Iterator walks key-value pairs. Keys and values are only valid until Next.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// Batch accumulates writes and applies them atomically on Write.
type Batch interface {
	Writer
	ValueSize() int
	Write() error
	Reset()
}

// Batcher creates batches.
type Batcher interface {
	NewBatch() Batch
}

// Store is the full key-value database interface.
type Store interface {
	Reader
	Writer
	Iteratee
	Batcher
	Close() error
}
