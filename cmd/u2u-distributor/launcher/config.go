package launcher

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/urfave/cli.v1"

	"github.com/unicornultrafoundation/go-u2u-distribution/api"
	"github.com/unicornultrafoundation/go-u2u-distribution/claimledger"
	"github.com/unicornultrafoundation/go-u2u-distribution/distribution"
	"github.com/unicornultrafoundation/go-u2u-distribution/kvdb"
	"github.com/unicornultrafoundation/go-u2u-distribution/monitoring"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils/toml"
	"github.com/unicornultrafoundation/go-u2u-distribution/vesting"
)

var (
	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "",
		Category:    "MISCELLANEOUS COMMANDS",
		Description: `The dumpconfig command shows configuration values.`,
	}

	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	DataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the ledger, escrow and balance databases",
		Value: DefaultDataDir(),
	}
)

// DistributionConfig is the TOML form of a distribution run. Amounts are in
// whole tokens and may carry up to 18 decimals.
type DistributionConfig struct {
	TotalSupply    string
	FloorThreshold string
	Blacklist      []common.Address
	// OverlayFile is a JSON object mapping addresses to token amounts.
	OverlayFile string `toml:",omitempty"`
}

type config struct {
	DataDir      string
	DB           kvdb.Config
	Distribution DistributionConfig
	Ledger       claimledger.Config
	Vesting      vesting.Config
	API          api.Config
	Monitoring   monitoring.Config
}

// DefaultDataDir is the default data directory to use for the databases.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "u2u-distributor"
	}
	return filepath.Join(home, ".u2u-distributor")
}

func defaultConfig() config {
	return config{
		DataDir: DefaultDataDir(),
		DB:      kvdb.DefaultConfig(),
		Distribution: DistributionConfig{
			TotalSupply:    "0",
			FloorThreshold: "0",
			Blacklist:      distribution.DefaultConfig().Blacklist,
		},
		Ledger:     claimledger.DefaultConfig(),
		Vesting:    vesting.DefaultConfig(),
		API:        api.DefaultConfig(),
		Monitoring: monitoring.DefaultConfig,
	}
}

func makeConfig(ctx *cli.Context) (*config, error) {
	cfg := defaultConfig()
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := toml.LoadFile(file, &cfg); err != nil {
			return nil, err
		}
	}
	if ctx.GlobalIsSet(DataDirFlag.Name) {
		cfg.DataDir = ctx.GlobalString(DataDirFlag.Name)
	}
	return &cfg, nil
}

// distributionConfig converts the TOML section, reading the overlay table.
func (c *config) distributionConfig() (distribution.Config, error) {
	total, err := utils.ParseTokens(c.Distribution.TotalSupply)
	if err != nil {
		return distribution.Config{}, fmt.Errorf("Distribution.TotalSupply: %w", err)
	}
	floor, err := utils.ParseTokens(c.Distribution.FloorThreshold)
	if err != nil {
		return distribution.Config{}, fmt.Errorf("Distribution.FloorThreshold: %w", err)
	}
	dcfg := distribution.Config{
		TotalSupply:    total,
		FloorThreshold: floor,
		Blacklist:      c.Distribution.Blacklist,
	}
	if c.Distribution.OverlayFile != "" {
		dcfg.Overlay, err = readOverlay(c.Distribution.OverlayFile)
		if err != nil {
			return distribution.Config{}, err
		}
	}
	return dcfg, nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	_, err = dump.Write(out)
	return err
}
