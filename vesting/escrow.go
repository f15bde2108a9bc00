// Package vesting is an escrow releasing per-recipient allocations linearly
// over a shared vesting period, with administrative overrides.
package vesting

import (
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"github.com/unicornultrafoundation/go-u2u-distribution/checkpoint"
	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
	"github.com/unicornultrafoundation/go-u2u-distribution/logger"
	"github.com/unicornultrafoundation/go-u2u-distribution/token"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils"
)

// YearSeconds is the vesting period of the U2U team and investor escrows.
const YearSeconds = 31556926

// Config of an escrow instance.
type Config struct {
	// Authority funds the escrow, receives decreased allocations and is the
	// only caller of admin operations.
	Authority common.Address
	// Pool is the token account holding locked funds.
	Pool common.Address
	// VestingPeriod in seconds, fixed for the lifetime of the escrow.
	VestingPeriod uint64
	// CacheSize is the number of schedules kept decoded in memory.
	CacheSize int
}

// DefaultConfig returns a config with a one year vesting period.
func DefaultConfig() Config {
	return Config{
		VestingPeriod: YearSeconds,
		CacheSize:     1024,
	}
}

// Status is the {locked, vested, claimable} triple of one recipient.
type Status struct {
	Address   common.Address
	Locked    *big.Int
	Vested    *big.Int
	Claimable *big.Int
	Claimed   *big.Int
	StartTime uint64
	EndTime   uint64
	Paused    bool
	Disabled  bool
}

// Supply is the escrow-wide accounting at one point in time.
type Supply struct {
	InitialLockedSupply *big.Int
	TotalClaimedAllTime *big.Int
	Locked              *big.Int
	Vested              *big.Int
	Recipients          int
}

// Grant is one line of a batch funding.
type Grant struct {
	Address common.Address
	Amount  *big.Int
	Start   uint64
}

// Escrow holds vesting schedules and pays out vested amounts from the pool.
// Every mutation is one batch: the schedule, the global totals and the token
// movement are written together or not at all.
type Escrow struct {
	cfg   Config
	db    kvdb.Store
	store *Store
	book  *token.Book
	clock clockwork.Clock

	mu sync.Mutex

	logger.Instance
}

// New opens the escrow persisted in db.
func New(cfg Config, db kvdb.Store, book *token.Book, clock clockwork.Clock) *Escrow {
	if cfg.VestingPeriod == 0 {
		panic("vesting period must be positive")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	return &Escrow{
		cfg:      cfg,
		db:       db,
		store:    NewStore(db, cfg.CacheSize),
		book:     book,
		clock:    clock,
		Instance: logger.New("vesting"),
	}
}

// Config returns the escrow config.
func (e *Escrow) Config() Config {
	return e.cfg
}

func (e *Escrow) now() uint64 {
	return uint64(e.clock.Now().Unix())
}

func (e *Escrow) schedule(addr common.Address) *Schedule {
	if s := e.store.getSchedule(addr); s != nil {
		return s
	}
	return newSchedule()
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}

// Fund adds amount to the allocation of addr and (re)starts its schedule at
// start. Funding an existing recipient accumulates the amount and the last
// start wins; use FundNew to refuse existing recipients.
func (e *Escrow) Fund(caller, addr common.Address, amount *big.Int, start uint64) error {
	if caller != e.cfg.Authority {
		return ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.fund(addr, amount, start, false)
}

// FundNew funds addr only if it has no allocation yet.
func (e *Escrow) FundNew(caller, addr common.Address, amount *big.Int, start uint64) error {
	if caller != e.cfg.Authority {
		return ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.fund(addr, amount, start, true)
}

func (e *Escrow) fund(addr common.Address, amount *big.Int, start uint64, once bool) error {
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if start > math.MaxUint64-e.cfg.VestingPeriod {
		return fmt.Errorf("%w: start %d overflows the vesting end", ErrInvalidAmount, start)
	}
	sched := e.schedule(addr)
	if !sched.Empty() {
		if once {
			return fmt.Errorf("%w: %s", ErrAddressAlreadyRecipient, addr.Hex())
		}
		if sched.StartTime != start {
			e.Log.Warn("Refunding recipient moves its start time", "address", addr, "from", sched.StartTime, "to", start)
		}
	}
	sched.TotalLocked.Add(sched.TotalLocked, amount)
	sched.StartTime = start
	sched.EndTime = start + e.cfg.VestingPeriod

	g := e.store.getGlobal()
	g.InitialLockedSupply.Add(g.InitialLockedSupply, amount)

	batch := e.db.NewBatch()
	w := e.store.wrap(batch)
	e.store.putSchedule(w, addr, sched)
	e.store.putGlobal(w, g)
	if err := e.book.Commit(batch, e.cfg.Authority, e.cfg.Pool, amount); err != nil {
		return err
	}
	fundedTokens.Add(utils.TokensFloat(amount))
	e.Log.Info("Funded", "address", addr, "amount", amount, "start", start, "end", sched.EndTime)
	return nil
}

// FundBatch funds every grant whose address is not in processed yet, adding
// it to processed on success. It stops at the first failure; already funded
// grants stay funded, so the batch can be re-run with the same set.
func (e *Escrow) FundBatch(caller common.Address, grants []Grant, processed *checkpoint.ProcessedSet) (int, error) {
	return e.fundBatch(caller, grants, processed, false)
}

// FundNewBatch is FundBatch under the rule of FundNew: a grant for an address
// that already has a schedule fails with ErrAddressAlreadyRecipient.
func (e *Escrow) FundNewBatch(caller common.Address, grants []Grant, processed *checkpoint.ProcessedSet) (int, error) {
	return e.fundBatch(caller, grants, processed, true)
}

func (e *Escrow) fundBatch(caller common.Address, grants []Grant, processed *checkpoint.ProcessedSet, once bool) (int, error) {
	if caller != e.cfg.Authority {
		return 0, ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	funded := 0
	for _, g := range grants {
		if processed.Contains(g.Address) {
			e.Log.Debug("Skipping processed grant", "address", g.Address)
			continue
		}
		if err := e.fund(g.Address, g.Amount, g.Start, once); err != nil {
			return funded, fmt.Errorf("grant %s: %w", g.Address.Hex(), err)
		}
		if err := processed.Add(g.Address); err != nil {
			return funded, err
		}
		funded++
	}
	return funded, nil
}

// VestedOf returns the linearly vested allocation of addr at now.
func (e *Escrow) VestedOf(addr common.Address, now uint64) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.schedule(addr).VestedAt(now)
}

// LockedOf returns the not yet vested allocation of addr at now.
func (e *Escrow) LockedOf(addr common.Address, now uint64) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	sched := e.schedule(addr)
	return utils.Sub0(sched.TotalLocked, sched.VestedAt(now))
}

// BalanceOf returns what addr could claim at now.
func (e *Escrow) BalanceOf(addr common.Address, now uint64) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.schedule(addr).ClaimableAt(now)
}

// Status returns the accounting of addr at now.
func (e *Escrow) Status(addr common.Address, now uint64) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	sched := e.schedule(addr)
	vested := sched.VestedAt(now)
	return Status{
		Address:   addr,
		Locked:    utils.Sub0(sched.TotalLocked, vested),
		Vested:    vested,
		Claimable: sched.ClaimableAt(now),
		Claimed:   sched.TotalClaimed,
		StartTime: sched.StartTime,
		EndTime:   sched.EndTime,
		Paused:    sched.Paused,
		Disabled:  sched.Disabled,
	}
}

// Recipients returns the status of every recipient at now, in address order.
func (e *Escrow) Recipients(now uint64) []Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Status
	e.store.forEachSchedule(func(addr common.Address, sched *Schedule) bool {
		if sched.Empty() {
			return true
		}
		vested := sched.VestedAt(now)
		out = append(out, Status{
			Address:   addr,
			Locked:    utils.Sub0(sched.TotalLocked, vested),
			Vested:    vested,
			Claimable: sched.ClaimableAt(now),
			Claimed:   sched.TotalClaimed,
			StartTime: sched.StartTime,
			EndTime:   sched.EndTime,
			Paused:    sched.Paused,
			Disabled:  sched.Disabled,
		})
		return true
	})
	return out
}

// Supply returns the global totals together with the locked and vested sums
// at now.
func (e *Escrow) Supply(now uint64) Supply {
	e.mu.Lock()
	defer e.mu.Unlock()

	g := e.store.getGlobal()
	s := Supply{
		InitialLockedSupply: g.InitialLockedSupply,
		TotalClaimedAllTime: g.TotalClaimedAllTime,
		Locked:              new(big.Int),
		Vested:              new(big.Int),
	}
	e.store.forEachSchedule(func(_ common.Address, sched *Schedule) bool {
		if sched.Empty() {
			return true
		}
		vested := sched.VestedAt(now)
		s.Vested.Add(s.Vested, vested)
		s.Locked.Add(s.Locked, utils.Sub0(sched.TotalLocked, vested))
		s.Recipients++
		return true
	})
	return s
}

// Claim pays the whole claimable balance to addr.
func (e *Escrow) Claim(addr common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.claim(addr, nil)
}

// PartialClaim pays exactly amount to addr.
func (e *Escrow) PartialClaim(addr common.Address, amount *big.Int) (*big.Int, error) {
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.claim(addr, amount)
}

// claim pays amount, or the whole balance if amount is nil.
func (e *Escrow) claim(addr common.Address, amount *big.Int) (*big.Int, error) {
	sched := e.schedule(addr)
	if sched.Disabled {
		claimsCounter.WithLabelValues("disabled").Inc()
		return nil, ErrAccountDisabled
	}
	balance := sched.ClaimableAt(e.now())
	if balance.Sign() <= 0 {
		claimsCounter.WithLabelValues("empty").Inc()
		return nil, ErrNothingToClaim
	}
	if amount == nil {
		amount = balance
	} else if amount.Cmp(balance) > 0 {
		claimsCounter.WithLabelValues("insufficient").Inc()
		return nil, fmt.Errorf("%w: requested %s, claimable %s", ErrInsufficientVested, amount, balance)
	}
	sched.TotalClaimed.Add(sched.TotalClaimed, amount)

	g := e.store.getGlobal()
	g.TotalClaimedAllTime.Add(g.TotalClaimedAllTime, amount)

	batch := e.db.NewBatch()
	w := e.store.wrap(batch)
	e.store.putSchedule(w, addr, sched)
	e.store.putGlobal(w, g)
	if err := e.book.Commit(batch, e.cfg.Pool, addr, amount); err != nil {
		e.Log.Warn("Vesting payout failed", "address", addr, "amount", amount, "err", err)
		return nil, err
	}
	claimsCounter.WithLabelValues("ok").Inc()
	paidTokens.Add(utils.TokensFloat(amount))
	e.Log.Info("Vesting claimed", "address", addr, "amount", amount, "claimed", sched.TotalClaimed, "locked", sched.TotalLocked)
	return new(big.Int).Set(amount), nil
}

// IncreaseAllocation adds extra to the allocation of addr, keeping its
// schedule.
func (e *Escrow) IncreaseAllocation(caller, addr common.Address, extra *big.Int) error {
	if caller != e.cfg.Authority {
		return ErrUnauthorized
	}
	if !validAmount(extra) {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	sched := e.store.getSchedule(addr)
	if sched == nil || sched.Empty() {
		return fmt.Errorf("%w: %s", ErrNoSchedule, addr.Hex())
	}
	sched.TotalLocked.Add(sched.TotalLocked, extra)

	g := e.store.getGlobal()
	g.InitialLockedSupply.Add(g.InitialLockedSupply, extra)

	batch := e.db.NewBatch()
	w := e.store.wrap(batch)
	e.store.putSchedule(w, addr, sched)
	e.store.putGlobal(w, g)
	if err := e.book.Commit(batch, e.cfg.Authority, e.cfg.Pool, extra); err != nil {
		return err
	}
	fundedTokens.Add(utils.TokensFloat(extra))
	e.Log.Info("Allocation increased", "address", addr, "extra", extra, "locked", sched.TotalLocked)
	return nil
}

// DecreaseAllocation removes reduceBy from the unvested part of the
// allocation of addr and returns it to the authority. Vested or already
// claimed tokens cannot be taken back.
func (e *Escrow) DecreaseAllocation(caller, addr common.Address, reduceBy *big.Int) error {
	if caller != e.cfg.Authority {
		return ErrUnauthorized
	}
	if !validAmount(reduceBy) {
		return ErrInvalidAmount
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	sched := e.store.getSchedule(addr)
	if sched == nil || sched.Empty() {
		return fmt.Errorf("%w: %s", ErrNoSchedule, addr.Hex())
	}
	protected := utils.BigMax(sched.VestedAt(e.now()), sched.TotalClaimed)
	if reducible := utils.Sub0(sched.TotalLocked, protected); reduceBy.Cmp(reducible) > 0 {
		return fmt.Errorf("%w: reduce by %s, at most %s", ErrInvalidAmount, reduceBy, reducible)
	}
	sched.TotalLocked.Sub(sched.TotalLocked, reduceBy)

	g := e.store.getGlobal()
	g.InitialLockedSupply.Sub(g.InitialLockedSupply, reduceBy)

	batch := e.db.NewBatch()
	w := e.store.wrap(batch)
	e.store.putSchedule(w, addr, sched)
	e.store.putGlobal(w, g)
	if err := e.book.Commit(batch, e.cfg.Pool, e.cfg.Authority, reduceBy); err != nil {
		return err
	}
	e.Log.Info("Allocation decreased", "address", addr, "reduceBy", reduceBy, "locked", sched.TotalLocked)
	return nil
}

// PauseClaim freezes the accrual of addr at what has vested now. Tokens
// vested before the pause stay claimable.
func (e *Escrow) PauseClaim(caller, addr common.Address) error {
	return e.update(caller, addr, func(sched *Schedule) {
		sched.pause(e.now())
	})
}

// UnpauseClaim resumes accrual of addr. The schedule end moves out by the
// paused time, so nothing accrues for the pause itself.
func (e *Escrow) UnpauseClaim(caller, addr common.Address) error {
	return e.update(caller, addr, func(sched *Schedule) {
		sched.resume(e.now())
	})
}

// DisableClaim blocks claims of addr without touching its allocation.
func (e *Escrow) DisableClaim(caller, addr common.Address) error {
	return e.update(caller, addr, func(sched *Schedule) {
		sched.Disabled = true
	})
}

// EnableClaim re-enables claims of addr.
func (e *Escrow) EnableClaim(caller, addr common.Address) error {
	return e.update(caller, addr, func(sched *Schedule) {
		sched.Disabled = false
	})
}

func (e *Escrow) update(caller, addr common.Address, fn func(*Schedule)) error {
	if caller != e.cfg.Authority {
		return ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	sched := e.store.getSchedule(addr)
	if sched == nil || sched.Empty() {
		return fmt.Errorf("%w: %s", ErrNoSchedule, addr.Hex())
	}
	fn(sched)

	batch := e.db.NewBatch()
	e.store.putSchedule(e.store.wrap(batch), addr, sched)
	if err := batch.Write(); err != nil {
		return err
	}
	e.Log.Info("Schedule updated", "address", addr, "paused", sched.Paused, "disabled", sched.Disabled)
	return nil
}

// ChangeWallet moves the whole schedule of oldAddr, claim history included,
// to newAddr and leaves oldAddr with an empty schedule.
func (e *Escrow) ChangeWallet(caller, oldAddr, newAddr common.Address) error {
	if caller != e.cfg.Authority {
		return ErrUnauthorized
	}
	if newAddr == (common.Address{}) {
		return ErrZeroAddress
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	sched := e.store.getSchedule(oldAddr)
	if sched == nil || sched.Empty() {
		return fmt.Errorf("%w: %s", ErrNoSchedule, oldAddr.Hex())
	}
	if existing := e.store.getSchedule(newAddr); existing != nil && !existing.Empty() {
		return fmt.Errorf("%w: %s", ErrAddressAlreadyRecipient, newAddr.Hex())
	}

	batch := e.db.NewBatch()
	w := e.store.wrap(batch)
	e.store.putSchedule(w, newAddr, sched)
	e.store.putSchedule(w, oldAddr, newSchedule())
	if err := batch.Write(); err != nil {
		return err
	}
	e.Log.Info("Wallet changed", "from", oldAddr, "to", newAddr, "locked", sched.TotalLocked, "claimed", sched.TotalClaimed)
	return nil
}
