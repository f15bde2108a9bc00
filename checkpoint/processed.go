// Package checkpoint keeps append-only records of already processed
// addresses, so that batch operations can be re-run safely.
package checkpoint

import (
	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
)

// ProcessedSet is an append-only address set, optionally persisted.
// It is not safe for concurrent use.
type ProcessedSet struct {
	set   mapset.Set
	table *kvdb.Table
}

// NewProcessedSet returns an empty in-memory set.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{set: mapset.NewThreadUnsafeSet()}
}

// OpenProcessedSet loads the set stored under name in db.
// Later additions are persisted there.
func OpenProcessedSet(db kvdb.Store, name string) (*ProcessedSet, error) {
	p := &ProcessedSet{
		set:   mapset.NewThreadUnsafeSet(),
		table: kvdb.NewTable(db, "p"+name+"/"),
	}
	it := p.table.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		p.set.Add(common.BytesToAddress(it.Key()))
	}
	if err := it.Error(); err != nil {
		return nil, errors.Wrapf(err, "failed to load checkpoint %s", name)
	}
	return p, nil
}

// Contains reports whether addr was processed.
func (p *ProcessedSet) Contains(addr common.Address) bool {
	return p.set.Contains(addr)
}

// Add marks addr as processed.
func (p *ProcessedSet) Add(addr common.Address) error {
	if !p.set.Add(addr) {
		return nil
	}
	if p.table == nil {
		return nil
	}
	if err := p.table.Put(addr.Bytes(), []byte{1}); err != nil {
		return errors.Wrap(err, "failed to persist checkpoint")
	}
	return nil
}

// Len returns the number of processed addresses.
func (p *ProcessedSet) Len() int {
	return p.set.Cardinality()
}
