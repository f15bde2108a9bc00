// Package claimledger holds published Merkle roots and pays out claims
// against them, at most once per (period, index).
package claimledger

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/jonboulle/clockwork"

	"github.com/unicornultrafoundation/go-u2u-distribution/distribution"
	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
	"github.com/unicornultrafoundation/go-u2u-distribution/logger"
	"github.com/unicornultrafoundation/go-u2u-distribution/merkle"
	"github.com/unicornultrafoundation/go-u2u-distribution/token"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils"
)

// Config of a ledger instance.
type Config struct {
	// Authority is the only caller allowed to rotate roots and self-destruct.
	Authority common.Address
	// Pool is the token account claims are paid from.
	Pool common.Address
	// Timeout is the time after creation or the last rotation before the
	// ledger may be self-destructed.
	Timeout time.Duration
}

// DefaultConfig returns a config with a 90 day sweep timeout.
func DefaultConfig() Config {
	return Config{
		Timeout: 90 * 24 * time.Hour,
	}
}

// ClaimRecord is emitted for every successful claim.
type ClaimRecord struct {
	Period  uint32
	Index   uint32
	Account common.Address
	Amount  *big.Int
	Time    time.Time
}

// Ledger is the claim ledger. Periods are numbered from 1; period 0 is the
// state before the first root is published and accepts no claims.
// All mutations are serialised by one lock.
type Ledger struct {
	cfg   Config
	db    kvdb.Store
	store *Store
	book  *token.Book
	clock clockwork.Clock

	mu sync.Mutex

	claimFeed event.Feed
	scope     event.SubscriptionScope

	logger.Instance
}

// New opens the ledger persisted in db, creating it if needed.
func New(cfg Config, db kvdb.Store, book *token.Book, clock clockwork.Clock) *Ledger {
	l := &Ledger{
		cfg:      cfg,
		db:       db,
		store:    NewStore(db),
		book:     book,
		clock:    clock,
		Instance: logger.New("claim-ledger"),
	}
	if l.store.getState() == nil {
		batch := db.NewBatch()
		l.store.putState(l.store.wrap(batch), &ledgerState{RotatedAt: uint64(clock.Now().Unix())})
		if err := batch.Write(); err != nil {
			l.Log.Crit("Failed to write ledger header", "err", err)
		}
	}
	return l
}

// Close unsubscribes all claim subscribers.
func (l *Ledger) Close() {
	l.scope.Close()
}

// SubscribeClaims delivers every successful claim to ch.
func (l *Ledger) SubscribeClaims(ch chan<- ClaimRecord) event.Subscription {
	return l.scope.Track(l.claimFeed.Subscribe(ch))
}

// Period returns the current period.
func (l *Ledger) Period() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.store.getState().Period
}

// Root returns the current root and its leaf count.
func (l *Ledger) Root() (common.Hash, uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.store.getState()
	return st.Root, st.LeafCount
}

// RootAt returns the root published for period.
func (l *Ledger) RootAt(period uint32) (common.Hash, bool) {
	return l.store.getRoot(period)
}

// IsClaimed reports whether (period, index) has been claimed.
func (l *Ledger) IsClaimed(period uint32, index uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.store.isClaimed(period, index)
}

// Destroyed reports whether the ledger has been self-destructed.
func (l *Ledger) Destroyed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.store.getState().Destroyed
}

// Claim pays amount to account if (index, account, amount) is a leaf of the
// root of period, which must be the current one. A claimed index stays
// claimed: any later claim for it fails with ErrAlreadyClaimed whatever
// account or amount is supplied.
func (l *Ledger) Claim(period uint32, index uint32, account common.Address, amount *big.Int, proof []common.Hash) (*ClaimRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.store.getState()
	if st.Destroyed {
		return nil, ErrDestroyed
	}
	if l.store.isClaimed(period, index) {
		claimsCounter.WithLabelValues("duplicate").Inc()
		return nil, fmt.Errorf("%w: period %d index %d", ErrAlreadyClaimed, period, index)
	}
	if period != st.Period || st.Root == (common.Hash{}) {
		claimsCounter.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: period %d is not open (current %d)", ErrInvalidProof, period, st.Period)
	}
	if amount == nil || !merkle.VerifyClaim(st.Root, index, account, amount, proof) {
		claimsCounter.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidProof
	}

	batch := l.db.NewBatch()
	l.store.setClaimed(l.store.wrap(batch), period, index)
	if err := l.book.Commit(batch, l.cfg.Pool, account, amount); err != nil {
		l.Log.Warn("Claim payout failed", "period", period, "index", index, "account", account, "err", err)
		return nil, err
	}

	rec := &ClaimRecord{
		Period:  period,
		Index:   index,
		Account: account,
		Amount:  new(big.Int).Set(amount),
		Time:    l.clock.Now(),
	}
	claimsCounter.WithLabelValues("ok").Inc()
	claimedTokens.Add(utils.TokensFloat(amount))
	l.Log.Info("Claimed", "period", period, "index", index, "account", account, "amount", amount)
	l.claimFeed.Send(*rec)
	return rec, nil
}

// SetRoot publishes root as the commitment of a new period. Claimed bits of
// earlier periods are kept under their own period.
func (l *Ledger) SetRoot(caller common.Address, root common.Hash, leafCount uint32) (uint32, error) {
	if caller != l.cfg.Authority {
		return 0, ErrUnauthorized
	}
	if root == (common.Hash{}) || leafCount == 0 {
		return 0, ErrInvalidRoot
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.store.getState()
	if st.Destroyed {
		return 0, ErrDestroyed
	}
	st.Period++
	st.Root = root
	st.LeafCount = leafCount
	st.RotatedAt = uint64(l.clock.Now().Unix())

	batch := l.db.NewBatch()
	w := l.store.wrap(batch)
	l.store.putState(w, st)
	l.store.putRoot(w, st.Period, root)
	if err := batch.Write(); err != nil {
		return 0, err
	}
	rotationsCounter.Inc()
	l.Log.Info("Root rotated", "period", st.Period, "root", root, "leaves", leafCount)
	return st.Period, nil
}

// SelfDestruct sweeps the whole pool balance to sweepTo once Timeout has
// elapsed since creation or the last rotation. The ledger accepts no
// operation afterwards.
func (l *Ledger) SelfDestruct(caller common.Address, sweepTo common.Address) (*big.Int, error) {
	if caller != l.cfg.Authority {
		return nil, ErrUnauthorized
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.store.getState()
	if st.Destroyed {
		return nil, ErrDestroyed
	}
	deadline := time.Unix(int64(st.RotatedAt), 0).Add(l.cfg.Timeout)
	if now := l.clock.Now(); now.Before(deadline) {
		return nil, fmt.Errorf("%w: %s left", ErrTimeoutNotReached, deadline.Sub(now))
	}

	residual := l.book.BalanceOf(l.cfg.Pool)
	st.Destroyed = true
	batch := l.db.NewBatch()
	l.store.putState(l.store.wrap(batch), st)
	if err := l.book.Commit(batch, l.cfg.Pool, sweepTo, residual); err != nil {
		return nil, err
	}
	l.Log.Warn("Ledger self-destructed", "period", st.Period, "sweepTo", sweepTo, "residual", residual)
	return residual, nil
}

// Unclaimed returns the entries of a period's distribution that were never
// claimed, as carry-forward input for the next distribution run.
func (l *Ledger) Unclaimed(period uint32, entries []distribution.Entry) []distribution.Allocation {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []distribution.Allocation
	for _, e := range entries {
		if l.store.isClaimed(period, e.Index) {
			continue
		}
		out = append(out, distribution.Allocation{Address: e.Address, Amount: new(big.Int).Set(e.Amount)})
	}
	return out
}
