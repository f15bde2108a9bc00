// Package token keeps the balances moved by claims and vesting payouts.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
	"github.com/unicornultrafoundation/go-u2u-distribution/logger"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNegativeAmount      = errors.New("negative amount")
)

// Book is a balance book over the key-value store.
// Commit applies a transfer together with the caller's own pending writes,
// so a payout and the state change that authorises it land in one batch.
type Book struct {
	mu    sync.Mutex
	db    kvdb.Store
	table *kvdb.Table

	logger.Instance
}

// NewBook opens the balance table of db.
func NewBook(db kvdb.Store) *Book {
	return &Book{
		db:       db,
		table:    kvdb.NewTable(db, "t"),
		Instance: logger.New("token"),
	}
}

// BalanceOf returns the balance of addr.
func (b *Book) BalanceOf(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.balanceOf(addr)
}

func (b *Book) balanceOf(addr common.Address) *big.Int {
	raw, err := b.table.Get(addr.Bytes())
	if err == kvdb.ErrNotFound {
		return new(big.Int)
	}
	if err != nil {
		b.Log.Crit("Failed to get key-value", "err", err)
	}
	return new(big.Int).SetBytes(raw)
}

// Mint credits amount to addr out of thin air. It is the funding entry point
// used by genesis-style setup and tests.
func (b *Book) Mint(to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	bal := b.balanceOf(to)
	return b.table.Put(to.Bytes(), bal.Add(bal, amount).Bytes())
}

// Transfer moves amount from one account to another.
func (b *Book) Transfer(from, to common.Address, amount *big.Int) error {
	return b.Commit(b.db.NewBatch(), from, to, amount)
}

// Commit stages the transfer into batch and writes the batch.
// batch must belong to the same database as the book. Nothing is written
// if the transfer is rejected.
func (b *Book) Commit(batch kvdb.Batch, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	fromBal := b.balanceOf(from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBal, amount)
	}
	if from != to {
		toBal := b.balanceOf(to)
		w := b.table.Wrap(batch)
		if err := w.Put(from.Bytes(), fromBal.Sub(fromBal, amount).Bytes()); err != nil {
			return err
		}
		if err := w.Put(to.Bytes(), toBal.Add(toBal, amount).Bytes()); err != nil {
			return err
		}
	}
	return batch.Write()
}
