package claimledger

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
	"github.com/unicornultrafoundation/go-u2u-distribution/logger"
)

var (
	stateKey     = []byte("s")
	rootPrefix   = []byte("r") // rootPrefix + period (uint32 big endian) -> root
	claimsPrefix = []byte("c") // claimsPrefix + period + word (uint32 big endian) -> 256-bit claimed word
)

// ledgerState is the ledger header.
type ledgerState struct {
	Period    uint32
	Root      common.Hash
	LeafCount uint32
	// RotatedAt is the unix time of creation or of the last rotation.
	RotatedAt uint64
	Destroyed bool
}

// Store is the persistent part of a Ledger.
type Store struct {
	table *kvdb.Table

	logger.Instance
}

// NewStore opens the ledger tables of db.
func NewStore(db kvdb.Store) *Store {
	return &Store{
		table:    kvdb.NewTable(db, "l"),
		Instance: logger.New("claim-ledger-store"),
	}
}

func encodeUint32(n uint32) []byte {
	enc := make([]byte, 4)
	binary.BigEndian.PutUint32(enc, n)
	return enc
}

func (s *Store) getState() *ledgerState {
	raw, err := s.table.Get(stateKey)
	if err == kvdb.ErrNotFound {
		return nil
	}
	if err != nil {
		s.Log.Crit("Failed to get key-value", "err", err)
	}
	st := &ledgerState{}
	if err := rlp.DecodeBytes(raw, st); err != nil {
		s.Log.Crit("Failed to decode rlp", "err", err, "size", len(raw))
	}
	return st
}

func (s *Store) putState(w kvdb.Writer, st *ledgerState) {
	raw, err := rlp.EncodeToBytes(st)
	if err != nil {
		s.Log.Crit("Failed to encode rlp", "err", err)
	}
	if err := w.Put(stateKey, raw); err != nil {
		s.Log.Crit("Failed to put key-value", "err", err)
	}
}

func (s *Store) getRoot(period uint32) (common.Hash, bool) {
	raw, err := s.table.Get(append(common.CopyBytes(rootPrefix), encodeUint32(period)...))
	if err == kvdb.ErrNotFound {
		return common.Hash{}, false
	}
	if err != nil {
		s.Log.Crit("Failed to get key-value", "err", err)
	}
	return common.BytesToHash(raw), true
}

func (s *Store) putRoot(w kvdb.Writer, period uint32, root common.Hash) {
	if err := w.Put(append(common.CopyBytes(rootPrefix), encodeUint32(period)...), root.Bytes()); err != nil {
		s.Log.Crit("Failed to put key-value", "err", err)
	}
}

func claimedWordKey(period uint32, index uint32) []byte {
	key := make([]byte, 0, len(claimsPrefix)+8)
	key = append(key, claimsPrefix...)
	key = append(key, encodeUint32(period)...)
	return append(key, encodeUint32(index>>8)...)
}

// claimedWord returns the 256-bit word holding the bit of index.
// Bit i of the word is byte 31-i/8, mask 1<<(i%8).
func (s *Store) claimedWord(period uint32, index uint32) [32]byte {
	var word [32]byte
	raw, err := s.table.Get(claimedWordKey(period, index))
	if err == kvdb.ErrNotFound {
		return word
	}
	if err != nil {
		s.Log.Crit("Failed to get key-value", "err", err)
	}
	copy(word[:], raw)
	return word
}

func bitPos(index uint32) (int, byte) {
	bit := index & 0xff
	return 31 - int(bit/8), 1 << (bit % 8)
}

func (s *Store) isClaimed(period uint32, index uint32) bool {
	word := s.claimedWord(period, index)
	pos, mask := bitPos(index)
	return word[pos]&mask != 0
}

func (s *Store) setClaimed(w kvdb.Writer, period uint32, index uint32) {
	word := s.claimedWord(period, index)
	pos, mask := bitPos(index)
	word[pos] |= mask
	if err := w.Put(claimedWordKey(period, index), word[:]); err != nil {
		s.Log.Crit("Failed to put key-value", "err", err)
	}
}

// wrap prefixes writes into a batch shared with other tables.
func (s *Store) wrap(b kvdb.Batch) kvdb.Writer {
	return s.table.Wrap(b)
}
