package vesting

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"

	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
	"github.com/unicornultrafoundation/go-u2u-distribution/logger"
)

var (
	globalKey      = []byte("g")
	schedulePrefix = []byte("s") // schedulePrefix + address -> rlp(Schedule)
)

// Global holds escrow-wide totals. InitialLockedSupply is the sum of all
// TotalLocked, TotalClaimedAllTime the sum of all TotalClaimed.
type Global struct {
	InitialLockedSupply *big.Int
	TotalClaimedAllTime *big.Int
}

// Store is the persistent part of an Escrow.
type Store struct {
	table *kvdb.Table
	cache *lru.Cache

	logger.Instance
}

// NewStore opens the escrow tables of db.
func NewStore(db kvdb.Store, cacheSize int) *Store {
	cache, err := lru.New(cacheSize)
	if err != nil {
		panic(err)
	}
	return &Store{
		table:    kvdb.NewTable(db, "v"),
		cache:    cache,
		Instance: logger.New("vesting-store"),
	}
}

func scheduleKey(addr common.Address) []byte {
	return append(common.CopyBytes(schedulePrefix), addr.Bytes()...)
}

// getSchedule returns a copy of the schedule of addr, or nil.
func (s *Store) getSchedule(addr common.Address) *Schedule {
	if c, ok := s.cache.Get(addr); ok {
		return c.(*Schedule).Copy()
	}
	raw, err := s.table.Get(scheduleKey(addr))
	if err == kvdb.ErrNotFound {
		return nil
	}
	if err != nil {
		s.Log.Crit("Failed to get key-value", "err", err)
	}
	sched := newSchedule()
	if err := rlp.DecodeBytes(raw, sched); err != nil {
		s.Log.Crit("Failed to decode rlp", "err", err, "size", len(raw))
	}
	s.cache.Add(addr, sched.Copy())
	return sched
}

// putSchedule stages sched into w. The cached copy is dropped and reloaded
// from the database on the next read.
func (s *Store) putSchedule(w kvdb.Writer, addr common.Address, sched *Schedule) {
	raw, err := rlp.EncodeToBytes(sched)
	if err != nil {
		s.Log.Crit("Failed to encode rlp", "err", err)
	}
	if err := w.Put(scheduleKey(addr), raw); err != nil {
		s.Log.Crit("Failed to put key-value", "err", err)
	}
	s.cache.Remove(addr)
}

// forEachSchedule iterates all schedules in address order.
func (s *Store) forEachSchedule(fn func(common.Address, *Schedule) bool) {
	it := s.table.NewIterator(schedulePrefix, nil)
	defer it.Release()
	for it.Next() {
		sched := newSchedule()
		if err := rlp.DecodeBytes(it.Value(), sched); err != nil {
			s.Log.Crit("Failed to decode rlp", "err", err)
		}
		if !fn(common.BytesToAddress(it.Key()[len(schedulePrefix):]), sched) {
			break
		}
	}
	if err := it.Error(); err != nil {
		s.Log.Crit("Failed to iterate schedules", "err", err)
	}
}

func (s *Store) getGlobal() *Global {
	g := &Global{
		InitialLockedSupply: new(big.Int),
		TotalClaimedAllTime: new(big.Int),
	}
	raw, err := s.table.Get(globalKey)
	if err == kvdb.ErrNotFound {
		return g
	}
	if err != nil {
		s.Log.Crit("Failed to get key-value", "err", err)
	}
	if err := rlp.DecodeBytes(raw, g); err != nil {
		s.Log.Crit("Failed to decode rlp", "err", err, "size", len(raw))
	}
	return g
}

func (s *Store) putGlobal(w kvdb.Writer, g *Global) {
	raw, err := rlp.EncodeToBytes(g)
	if err != nil {
		s.Log.Crit("Failed to encode rlp", "err", err)
	}
	if err := w.Put(globalKey, raw); err != nil {
		s.Log.Crit("Failed to put key-value", "err", err)
	}
}

func (s *Store) wrap(b kvdb.Batch) kvdb.Writer {
	return s.table.Wrap(b)
}
