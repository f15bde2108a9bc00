package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/unicornultrafoundation/go-u2u-distribution/claimledger"
	"github.com/unicornultrafoundation/go-u2u-distribution/distribution"
	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
	"github.com/unicornultrafoundation/go-u2u-distribution/logger"
	"github.com/unicornultrafoundation/go-u2u-distribution/merkle"
	"github.com/unicornultrafoundation/go-u2u-distribution/token"
	"github.com/unicornultrafoundation/go-u2u-distribution/vesting"
)

var (
	operator = common.HexToAddress("0x0000000000000000000000000000000000000a0a")
	pool     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	escrowed = common.HexToAddress("0x0000000000000000000000000000000000000e0e")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

const start = 1_700_000_000

type testEnv struct {
	srv    *Server
	ledger *claimledger.Ledger
	escrow *vesting.Escrow
	com    *distribution.Commitment
	clock  *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	require := require.New(t)
	logger.SetTestMode(t)
	db := kvdb.NewMemory()
	t.Cleanup(func() { _ = db.Close() })
	book := token.NewBook(db)
	require.NoError(book.Mint(pool, big.NewInt(1000)))
	require.NoError(book.Mint(operator, big.NewInt(1000)))
	clock := clockwork.NewFakeClockAt(time.Unix(start, 0))

	lcfg := claimledger.DefaultConfig()
	lcfg.Authority = operator
	lcfg.Pool = pool
	ledger := claimledger.New(lcfg, db, book, clock)
	t.Cleanup(ledger.Close)

	vcfg := vesting.DefaultConfig()
	vcfg.Authority = operator
	vcfg.Pool = escrowed
	vcfg.VestingPeriod = 1000
	escrow := vesting.New(vcfg, db, book, clock)
	require.NoError(escrow.Fund(operator, bob, big.NewInt(1000), start))

	com, err := distribution.Commit([]distribution.Entry{
		{Index: 0, Address: alice, Amount: big.NewInt(700)},
		{Index: 1, Address: bob, Amount: big.NewInt(300)},
	})
	require.NoError(err)
	_, err = ledger.SetRoot(operator, com.Root, com.LeafCount)
	require.NoError(err)

	srv := New(DefaultConfig(), ledger, escrow, clock)
	srv.SetCommitment(com)
	return &testEnv{srv: srv, ledger: ledger, escrow: escrow, com: com, clock: clock}
}

func get(t *testing.T, h http.Handler, path string, out interface{}) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestRootRoute(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	var resp rootResponse
	require.Equal(http.StatusOK, get(t, env.srv.Handler(), "/root", &resp))
	require.Equal(uint32(1), resp.Period)
	require.Equal(env.com.Root, resp.Root)
	require.Equal(uint32(2), resp.LeafCount)
	require.Equal("1000", resp.TokenTotal)
	require.False(resp.Destroyed)
}

func TestClaimRoute(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	h := env.srv.Handler()

	var resp claimResponse
	require.Equal(http.StatusOK, get(t, h, "/claims/"+strings.ToLower(alice.Hex()), &resp))
	require.Equal(uint32(0), resp.Index)
	require.Equal(strings.ToLower(alice.Hex()), resp.Address)
	require.Equal("700", resp.Balance)
	require.Equal(uint32(1), resp.Period)
	require.False(resp.Claimed)
	require.True(merkle.VerifyClaim(env.com.Root, resp.Index, alice, big.NewInt(700), resp.Proof))

	_, err := env.ledger.Claim(1, resp.Index, alice, big.NewInt(700), resp.Proof)
	require.NoError(err)
	require.Equal(http.StatusOK, get(t, h, "/claims/"+alice.Hex(), &resp))
	require.True(resp.Claimed)

	var errResp errorResponse
	require.Equal(http.StatusNotFound, get(t, h, "/claims/"+operator.Hex(), &errResp))
	require.Contains(errResp.Error, "no claim")
	require.Equal(http.StatusBadRequest, get(t, h, "/claims/0x1234", &errResp))
	require.Equal("invalid address", errResp.Error)
}

func TestVestingRoutes(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	h := env.srv.Handler()
	env.clock.Advance(250 * time.Second)

	var st vestingResponse
	require.Equal(http.StatusOK, get(t, h, "/vesting/"+bob.Hex(), &st))
	require.Equal("250", st.Vested)
	require.Equal("750", st.Locked)
	require.Equal("250", st.Claimable)
	require.Equal("0", st.Claimed)
	require.Equal(uint64(start+1000), st.EndTime)

	var sup supplyResponse
	require.Equal(http.StatusOK, get(t, h, "/vesting", &sup))
	require.Equal("1000", sup.InitialLockedSupply)
	require.Equal("0", sup.TotalClaimedAllTime)
	require.Equal("250", sup.Vested)
	require.Equal(1, sup.Recipients)
}

func TestMissingComponents(t *testing.T) {
	require := require.New(t)
	logger.SetTestMode(t)
	h := New(DefaultConfig(), nil, nil, clockwork.NewFakeClock()).Handler()

	require.Equal(http.StatusNotFound, get(t, h, "/root", nil))
	require.Equal(http.StatusNotFound, get(t, h, "/vesting", nil))
	require.Equal(http.StatusNotFound, get(t, h, "/claims/"+alice.Hex(), nil))
	require.Equal(http.StatusNotFound, get(t, h, "/unknown", nil))
}

func TestCorsHeaders(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/root", nil)
	req.Header.Set("Origin", "https://claims.example.org")
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeShutdown(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- env.srv.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/root")
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	require.NoError(resp.Body.Close())

	cancel()
	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
