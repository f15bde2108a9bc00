package launcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/unicornultrafoundation/go-u2u-distribution/claimledger"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils/toml"
)

var (
	authority = common.HexToAddress("0x0000000000000000000000000000000000000a0a")
	claimPool = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	escrowAcc = common.HexToAddress("0x0000000000000000000000000000000000000e0e")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol     = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	dave      = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

type testCLI struct {
	t       *testing.T
	dir     string
	cfgFile string
	cfg     config
	clock   *clockwork.FakeClock
}

func newTestCLI(t *testing.T) *testCLI {
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Distribution.TotalSupply = "1600"
	cfg.Distribution.FloorThreshold = "100"
	cfg.Ledger.Authority = authority
	cfg.Ledger.Pool = claimPool
	cfg.Vesting.Authority = authority
	cfg.Vesting.Pool = escrowAcc
	cfg.Vesting.VestingPeriod = 1000

	out, err := toml.Marshal(&cfg)
	require.NoError(t, err)
	cfgFile := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgFile, out, 0600))

	fake := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	prev := clock
	clock = fake
	t.Cleanup(func() { clock = prev })

	return &testCLI{t: t, dir: dir, cfgFile: cfgFile, cfg: cfg, clock: fake}
}

func (c *testCLI) run(args ...string) error {
	return newApp().Run(append([]string{clientIdentifier, "--config", c.cfgFile, "--verbosity", "1"}, args...))
}

func (c *testCLI) mustRun(args ...string) {
	require.NoError(c.t, c.run(args...), strings.Join(args, " "))
}

func (c *testCLI) writeJSON(name string, v interface{}) string {
	raw, err := json.Marshal(v)
	require.NoError(c.t, err)
	file := filepath.Join(c.dir, name)
	require.NoError(c.t, os.WriteFile(file, raw, 0600))
	return file
}

func (c *testCLI) balanceOf(addr common.Address) string {
	s, err := openStack(&c.cfg)
	require.NoError(c.t, err)
	defer s.Close()
	return utils.FormatTokens(s.book.BalanceOf(addr))
}

func TestDistributionLifecycle(t *testing.T) {
	require := require.New(t)
	c := newTestCLI(t)

	scores := c.writeJSON("scores.json", map[string]interface{}{
		alice.Hex(): 10,
		bob.Hex():   "5",
		carol.Hex(): 1,
	})
	pub := filepath.Join(c.dir, "pub1.json")

	c.mustRun("token", "mint", "--address", claimPool.Hex(), "--amount", "1600")
	c.mustRun("compute", "--scores", scores, "--out", pub)
	c.mustRun("verify", "--publication", pub)

	com, err := readPublication(pub)
	require.NoError(err)
	require.Equal("1600", utils.FormatTokens(com.Total()))
	e, ok := com.EntryOf(carol)
	require.True(ok)
	require.Equal("100", utils.FormatTokens(e.Amount))

	c.mustRun("publish", "--publication", pub)
	c.mustRun("claim", "--address", alice.Hex())
	require.Equal("1000", c.balanceOf(alice))
	require.Equal("600", c.balanceOf(claimPool))

	err = c.run("claim", "--address", alice.Hex())
	require.ErrorIs(err, claimledger.ErrAlreadyClaimed)
	require.Error(c.run("claim", "--address", dave.Hex()))

	// the next period carries bob and carol forward
	pub2 := filepath.Join(c.dir, "pub2.json")
	c.mustRun("compute", "--scores", scores, "--out", pub2, "--carry")
	com2, err := readPublication(pub2)
	require.NoError(err)
	require.Equal("2200", utils.FormatTokens(com2.Total()))
	e, ok = com2.EntryOf(bob)
	require.True(ok)
	require.Equal("1000", utils.FormatTokens(e.Amount))

	c.mustRun("token", "mint", "--address", claimPool.Hex(), "--amount", "1600")
	c.mustRun("publish", "--publication", pub2)
	c.mustRun("claim", "--address", bob.Hex())
	require.Equal("1000", c.balanceOf(bob))
	c.mustRun("history")

	require.Error(c.run("selfdestruct", "--sweepto", authority.Hex()))
	require.Error(c.run("publish", "--publication", filepath.Join(c.dir, "missing.json")))
}

func TestTamperedPublicationRejected(t *testing.T) {
	require := require.New(t)
	c := newTestCLI(t)

	scores := c.writeJSON("scores.json", map[string]interface{}{alice.Hex(): 3, bob.Hex(): 1})
	pub := filepath.Join(c.dir, "pub.json")
	c.mustRun("compute", "--scores", scores, "--out", pub)

	raw, err := os.ReadFile(pub)
	require.NoError(err)
	var doc map[string]interface{}
	require.NoError(json.Unmarshal(raw, &doc))
	claims := doc["claims"].([]interface{})
	claims[0].(map[string]interface{})["balance"] = "1"
	c.writeJSON("pub.json", doc)

	require.Error(c.run("verify", "--publication", pub))
	require.Error(c.run("publish", "--publication", pub))
}

func TestVestingCommands(t *testing.T) {
	require := require.New(t)
	c := newTestCLI(t)

	start := uint64(c.clock.Now().Unix())
	grants := c.writeJSON("grants.json", []map[string]interface{}{
		{"address": alice.Hex(), "amount": "1000", "start": start},
		{"address": bob.Hex(), "amount": "500.5", "start": start},
	})
	c.mustRun("token", "mint", "--address", authority.Hex(), "--amount", "1000")
	// second grant cannot be paid yet
	require.Error(c.run("vesting", "fund", "--grants", grants))
	c.mustRun("token", "mint", "--address", authority.Hex(), "--amount", "500.5")
	c.mustRun("vesting", "fund", "--grants", grants)
	// a re-run skips everything
	c.mustRun("vesting", "fund", "--grants", grants)
	require.Equal("1500.5", c.balanceOf(escrowAcc))

	c.clock.Advance(500 * time.Second)
	c.mustRun("vesting", "claim", "--address", alice.Hex(), "--amount", "100")
	c.mustRun("vesting", "claim", "--address", alice.Hex())
	require.Equal("500", c.balanceOf(alice))

	c.mustRun("vesting", "disable", "--address", bob.Hex())
	require.Error(c.run("vesting", "claim", "--address", bob.Hex()))
	c.mustRun("vesting", "enable", "--address", bob.Hex())
	c.mustRun("vesting", "decrease", "--address", bob.Hex(), "--amount", "200")
	require.Equal("200", c.balanceOf(authority))
	c.mustRun("vesting", "changewallet", "--address", bob.Hex(), "--to", dave.Hex())
	c.mustRun("vesting", "status")
	c.mustRun("vesting", "status", "--address", dave.Hex())

	c.clock.Advance(500 * time.Second)
	c.mustRun("vesting", "claim", "--address", dave.Hex())
	require.Equal("300.5", c.balanceOf(dave))
}

func TestVestingFundOnce(t *testing.T) {
	require := require.New(t)
	c := newTestCLI(t)

	grants := c.writeJSON("grants.json", []map[string]interface{}{
		{"address": alice.Hex(), "amount": "100", "start": uint64(c.clock.Now().Unix())},
	})
	c.mustRun("token", "mint", "--address", authority.Hex(), "--amount", "300")
	c.mustRun("vesting", "fund", "--grants", grants, "--once")

	err := c.run("vesting", "fund", "--grants", grants, "--checkpoint", "second", "--once")
	require.Error(err)
	require.Contains(err.Error(), "already recipient")
	require.Equal("100", c.balanceOf(escrowAcc))

	c.mustRun("vesting", "fund", "--grants", grants, "--checkpoint", "topup")
	require.Equal("200", c.balanceOf(escrowAcc))
}

func TestDumpConfigRoundTrip(t *testing.T) {
	require := require.New(t)
	c := newTestCLI(t)

	out := filepath.Join(c.dir, "dump.toml")
	c.mustRun("dumpconfig", out)

	loaded := defaultConfig()
	require.NoError(toml.LoadFile(out, &loaded))
	require.Equal(c.cfg, loaded)
}

func TestErrlockBlocksCommands(t *testing.T) {
	require := require.New(t)
	c := newTestCLI(t)

	c.mustRun("token", "balance", "--address", alice.Hex())
	require.NoError(os.WriteFile(filepath.Join(c.cfg.DataDir, "errlock"), []byte("broken"), 0600))
	err := c.run("token", "balance", "--address", alice.Hex())
	require.Error(err)
	require.Contains(err.Error(), "broken")
}
