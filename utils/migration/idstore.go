package migration

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
)

// IDStore stores the id of the last applied schema migration.
type IDStore struct {
	table kvdb.Store
	key   []byte
}

// NewIDStore constructor
func NewIDStore(table kvdb.Store) *IDStore {
	return &IDStore{
		table: table,
		key:   []byte("id"),
	}
}

// GetID is a getter
func (p *IDStore) GetID() string {
	id, err := p.table.Get(p.key)
	if err == kvdb.ErrNotFound {
		return ""
	}
	if err != nil {
		log.Crit("Failed to get key-value", "err", err)
	}
	return string(id)
}

// SetID is a setter
func (p *IDStore) SetID(id string) {
	err := p.table.Put(p.key, []byte(id))
	if err != nil {
		log.Crit("Failed to put key-value", "err", err)
	}
}
