package claimledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/unicornultrafoundation/go-u2u-distribution/distribution"
	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
	"github.com/unicornultrafoundation/go-u2u-distribution/logger"
	"github.com/unicornultrafoundation/go-u2u-distribution/token"
)

var (
	operator = common.HexToAddress("0x0000000000000000000000000000000000000a0a")
	pool     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	sweeper  = common.HexToAddress("0x0000000000000000000000000000000000000c0c")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

type testEnv struct {
	db     *kvdb.Database
	book   *token.Book
	clock  *clockwork.FakeClock
	ledger *Ledger
}

func newTestEnv(t *testing.T, funded int64) *testEnv {
	logger.SetTestMode(t)
	db := kvdb.NewMemory()
	t.Cleanup(func() { _ = db.Close() })

	book := token.NewBook(db)
	require.NoError(t, book.Mint(pool, big.NewInt(funded)))
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))

	cfg := DefaultConfig()
	cfg.Authority = operator
	cfg.Pool = pool
	cfg.Timeout = 24 * time.Hour
	l := New(cfg, db, book, clock)
	t.Cleanup(l.Close)
	return &testEnv{db: db, book: book, clock: clock, ledger: l}
}

func commit(t *testing.T, amounts map[common.Address]int64, carry []distribution.Allocation) *distribution.Commitment {
	scores := make([]distribution.ScoredRecipient, 0, len(amounts))
	total := int64(0)
	for addr, amount := range amounts {
		scores = append(scores, distribution.ScoredRecipient{Address: addr.Hex(), Score: big.NewInt(amount)})
		total += amount
	}
	calc, err := distribution.NewCalculator(distribution.Config{TotalSupply: big.NewInt(total)})
	require.NoError(t, err)
	d, err := calc.Compute(scores, carry)
	require.NoError(t, err)
	com, err := distribution.Commit(d.Entries)
	require.NoError(t, err)
	return com
}

func (env *testEnv) publish(t *testing.T, com *distribution.Commitment) uint32 {
	period, err := env.ledger.SetRoot(operator, com.Root, com.LeafCount)
	require.NoError(t, err)
	return period
}

func TestClaimPaysOnce(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 1000)
	com := commit(t, map[common.Address]int64{alice: 600, bob: 300, carol: 100}, nil)
	period := env.publish(t, com)
	require.Equal(uint32(1), period)

	claims := make(chan ClaimRecord, 4)
	sub := env.ledger.SubscribeClaims(claims)
	defer sub.Unsubscribe()

	e, ok := com.EntryOf(bob)
	require.True(ok)
	rec, err := env.ledger.Claim(period, e.Index, e.Address, e.Amount, e.Proof)
	require.NoError(err)
	require.Equal(bob, rec.Account)
	require.Equal(big.NewInt(300), env.book.BalanceOf(bob))
	require.Equal(big.NewInt(700), env.book.BalanceOf(pool))
	require.True(env.ledger.IsClaimed(period, e.Index))
	require.Equal(*rec, <-claims)

	// retried identical call is rejected and pays nothing
	_, err = env.ledger.Claim(period, e.Index, e.Address, e.Amount, e.Proof)
	require.ErrorIs(err, ErrAlreadyClaimed)
	require.Equal(big.NewInt(300), env.book.BalanceOf(bob))

	// so is any other account or amount for the same index
	other, _ := com.EntryOf(alice)
	_, err = env.ledger.Claim(period, e.Index, other.Address, other.Amount, other.Proof)
	require.ErrorIs(err, ErrAlreadyClaimed)
}

func TestClaimRejectsBadProofs(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 1000)
	com := commit(t, map[common.Address]int64{alice: 600, bob: 300, carol: 100}, nil)

	a, _ := com.EntryOf(alice)
	_, err := env.ledger.Claim(0, a.Index, a.Address, a.Amount, a.Proof)
	require.ErrorIs(err, ErrInvalidProof, "nothing published yet")

	period := env.publish(t, com)
	b, _ := com.EntryOf(bob)

	_, err = env.ledger.Claim(period, a.Index, a.Address, big.NewInt(601), a.Proof)
	require.ErrorIs(err, ErrInvalidProof)
	_, err = env.ledger.Claim(period, a.Index, bob, a.Amount, a.Proof)
	require.ErrorIs(err, ErrInvalidProof)
	_, err = env.ledger.Claim(period, b.Index, a.Address, a.Amount, a.Proof)
	require.ErrorIs(err, ErrInvalidProof)
	_, err = env.ledger.Claim(period, a.Index, a.Address, a.Amount, b.Proof)
	require.ErrorIs(err, ErrInvalidProof)
	_, err = env.ledger.Claim(period, a.Index, a.Address, nil, a.Proof)
	require.ErrorIs(err, ErrInvalidProof)
	_, err = env.ledger.Claim(period+1, a.Index, a.Address, a.Amount, a.Proof)
	require.ErrorIs(err, ErrInvalidProof)

	require.False(env.ledger.IsClaimed(period, a.Index))
	require.Equal(big.NewInt(1000), env.book.BalanceOf(pool))
}

func TestClaimFailsAtomicallyOnEmptyPool(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 100)
	com := commit(t, map[common.Address]int64{alice: 600, bob: 300}, nil)
	period := env.publish(t, com)

	a, _ := com.EntryOf(alice)
	_, err := env.ledger.Claim(period, a.Index, a.Address, a.Amount, a.Proof)
	require.ErrorIs(err, token.ErrInsufficientBalance)
	require.False(env.ledger.IsClaimed(period, a.Index), "bit must not be set without payout")
	require.Zero(env.book.BalanceOf(alice).Sign())
}

func TestRotationCarriesForwardUnclaimed(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 10_000)

	first := commit(t, map[common.Address]int64{alice: 600, bob: 400}, nil)
	p1 := env.publish(t, first)
	a, _ := first.EntryOf(alice)
	_, err := env.ledger.Claim(p1, a.Index, a.Address, a.Amount, a.Proof)
	require.NoError(err)

	carry := env.ledger.Unclaimed(p1, first.Entries)
	require.Len(carry, 1)
	require.Equal(bob, carry[0].Address)

	second := commit(t, map[common.Address]int64{alice: 100, bob: 100}, carry)
	p2 := env.publish(t, second)
	require.Equal(p1+1, p2)
	require.Equal(p2, env.ledger.Period())
	root, leaves := env.ledger.Root()
	require.Equal(second.Root, root)
	require.Equal(uint32(2), leaves)
	old, ok := env.ledger.RootAt(p1)
	require.True(ok)
	require.Equal(first.Root, old)

	// old period is closed, its bits stay queryable
	b1, _ := first.EntryOf(bob)
	_, err = env.ledger.Claim(p1, b1.Index, b1.Address, b1.Amount, b1.Proof)
	require.ErrorIs(err, ErrInvalidProof)
	require.True(env.ledger.IsClaimed(p1, a.Index))

	b2, _ := second.EntryOf(bob)
	require.Equal(big.NewInt(500), b2.Amount)
	_, err = env.ledger.Claim(p2, b2.Index, b2.Address, b2.Amount, b2.Proof)
	require.NoError(err)
	require.Equal(big.NewInt(500), env.book.BalanceOf(bob))

	// a new period has its own claimed namespace
	a2, _ := second.EntryOf(alice)
	_, err = env.ledger.Claim(p2, a2.Index, a2.Address, a2.Amount, a2.Proof)
	require.NoError(err)
}

func TestSetRootAuthorization(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 0)

	_, err := env.ledger.SetRoot(alice, common.HexToHash("0x01"), 1)
	require.ErrorIs(err, ErrUnauthorized)
	_, err = env.ledger.SetRoot(operator, common.Hash{}, 1)
	require.ErrorIs(err, ErrInvalidRoot)
	_, err = env.ledger.SetRoot(operator, common.HexToHash("0x01"), 0)
	require.ErrorIs(err, ErrInvalidRoot)
	require.Zero(env.ledger.Period())
}

func TestSelfDestruct(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 1000)
	com := commit(t, map[common.Address]int64{alice: 600, bob: 400}, nil)
	period := env.publish(t, com)

	env.clock.Advance(23 * time.Hour)
	_, err := env.ledger.SelfDestruct(operator, sweeper)
	require.ErrorIs(err, ErrTimeoutNotReached)
	_, err = env.ledger.SelfDestruct(alice, sweeper)
	require.ErrorIs(err, ErrUnauthorized)

	a, _ := com.EntryOf(alice)
	_, err = env.ledger.Claim(period, a.Index, a.Address, a.Amount, a.Proof)
	require.NoError(err)

	env.clock.Advance(time.Hour)
	swept, err := env.ledger.SelfDestruct(operator, sweeper)
	require.NoError(err)
	require.Equal(big.NewInt(400), swept)
	require.Equal(big.NewInt(400), env.book.BalanceOf(sweeper))
	require.Zero(env.book.BalanceOf(pool).Sign())
	require.True(env.ledger.Destroyed())

	b, _ := com.EntryOf(bob)
	_, err = env.ledger.Claim(period, b.Index, b.Address, b.Amount, b.Proof)
	require.ErrorIs(err, ErrDestroyed)
	_, err = env.ledger.SetRoot(operator, com.Root, com.LeafCount)
	require.ErrorIs(err, ErrDestroyed)
	_, err = env.ledger.SelfDestruct(operator, sweeper)
	require.ErrorIs(err, ErrDestroyed)
}

func TestRotationResetsSelfDestructTimer(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 1000)

	env.clock.Advance(20 * time.Hour)
	env.publish(t, commit(t, map[common.Address]int64{alice: 1}, nil))
	env.clock.Advance(20 * time.Hour)
	_, err := env.ledger.SelfDestruct(operator, sweeper)
	require.ErrorIs(err, ErrTimeoutNotReached)
}

func TestLedgerStateSurvivesReopen(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 1000)
	com := commit(t, map[common.Address]int64{alice: 600, bob: 400}, nil)
	period := env.publish(t, com)
	a, _ := com.EntryOf(alice)
	_, err := env.ledger.Claim(period, a.Index, a.Address, a.Amount, a.Proof)
	require.NoError(err)

	reopened := New(env.ledger.cfg, env.db, env.book, env.clock)
	require.Equal(period, reopened.Period())
	_, err = reopened.Claim(period, a.Index, a.Address, a.Amount, a.Proof)
	require.ErrorIs(err, ErrAlreadyClaimed)
}

func TestClaimedBitsArePerIndex(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 0)

	batch := env.db.NewBatch()
	for _, idx := range []uint32{0, 7, 8, 255, 256, 1 << 20} {
		env.ledger.store.setClaimed(env.ledger.store.wrap(batch), 3, idx)
		require.NoError(batch.Write())
		batch.Reset()
	}
	for _, idx := range []uint32{0, 7, 8, 255, 256, 1 << 20} {
		require.True(env.ledger.IsClaimed(3, idx), "index %d", idx)
		require.False(env.ledger.IsClaimed(4, idx), "index %d", idx)
	}
	for _, idx := range []uint32{1, 6, 9, 254, 257, 1<<20 + 1} {
		require.False(env.ledger.IsClaimed(3, idx), "index %d", idx)
	}
}
