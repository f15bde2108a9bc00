package launcher

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"github.com/unicornultrafoundation/go-u2u-distribution/distribution"
	"github.com/unicornultrafoundation/go-u2u-distribution/merkle"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils/errlock"
)

var (
	ScoresFileFlag = cli.StringFlag{
		Name:  "scores",
		Usage: "JSON file mapping addresses to integer scores",
	}
	OutputFlag = cli.StringFlag{
		Name:  "out",
		Usage: "Output file (stdout if empty)",
	}
	PublicationFlag = cli.StringFlag{
		Name:  "publication",
		Usage: "Publication JSON file produced by 'compute'",
	}
	CarryFlag = cli.BoolFlag{
		Name:  "carry",
		Usage: "Carry unclaimed balances of the current period into the new distribution",
	}
	AddressFlag = cli.StringFlag{
		Name:  "address",
		Usage: "Account address",
	}
	SweepToFlag = cli.StringFlag{
		Name:  "sweepto",
		Usage: "Address receiving the residual pool balance",
	}

	computeCommand = cli.Command{
		Action:    computeDistribution,
		Name:      "compute",
		Usage:     "Compute a distribution and its Merkle commitment from a scoring snapshot",
		ArgsUsage: "",
		Flags: []cli.Flag{
			ScoresFileFlag,
			OutputFlag,
			CarryFlag,
		},
		Category: "DISTRIBUTION COMMANDS",
		Description: `
The compute command splits Distribution.TotalSupply among the scored addresses,
drops shares below Distribution.FloorThreshold, adds the overlay table and
writes the publication file with the Merkle root and every claim proof.
With --carry, unclaimed balances of the current period are added as well.`,
	}
	verifyCommand = cli.Command{
		Action:    verifyPublication,
		Name:      "verify",
		Usage:     "Check that a publication file matches its root and all proofs verify",
		ArgsUsage: "",
		Flags: []cli.Flag{
			PublicationFlag,
		},
		Category: "DISTRIBUTION COMMANDS",
	}
	publishCommand = cli.Command{
		Action:    publishRoot,
		Name:      "publish",
		Usage:     "Publish the root of a publication file to the claim ledger",
		ArgsUsage: "",
		Flags: []cli.Flag{
			PublicationFlag,
		},
		Category: "DISTRIBUTION COMMANDS",
	}
	claimCommand = cli.Command{
		Action:    claimDistribution,
		Name:      "claim",
		Usage:     "Claim the current period allocation of an address",
		ArgsUsage: "",
		Flags: []cli.Flag{
			AddressFlag,
		},
		Category: "DISTRIBUTION COMMANDS",
	}
	historyCommand = cli.Command{
		Action:    showHistory,
		Name:      "history",
		Usage:     "List published periods and their claim progress",
		ArgsUsage: "",
		Category:  "DISTRIBUTION COMMANDS",
	}
	destroyCommand = cli.Command{
		Action:    selfDestruct,
		Name:      "selfdestruct",
		Usage:     "Sweep the remaining claim pool once the ledger timeout has passed",
		ArgsUsage: "",
		Flags: []cli.Flag{
			SweepToFlag,
		},
		Category: "DISTRIBUTION COMMANDS",
	}
)

func parseAddressFlag(ctx *cli.Context, flag cli.StringFlag) (common.Address, error) {
	raw := ctx.String(flag.Name)
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.Errorf("--%s: invalid address %q", flag.Name, raw)
	}
	return common.HexToAddress(raw), nil
}

func computeDistribution(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	scoresFile := ctx.String(ScoresFileFlag.Name)
	if scoresFile == "" {
		return errors.New("--scores is required")
	}

	var (
		scores []distribution.ScoredRecipient
		dcfg   distribution.Config
	)
	var g errgroup.Group
	g.Go(func() (err error) {
		scores, err = readScores(scoresFile)
		return err
	})
	g.Go(func() (err error) {
		dcfg, err = cfg.distributionConfig()
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	var carry []distribution.Allocation
	if ctx.Bool(CarryFlag.Name) {
		carry, err = unclaimedOfCurrent(cfg)
		if err != nil {
			return err
		}
	}

	calc, err := distribution.NewCalculator(dcfg)
	if err != nil {
		return err
	}
	d, err := calc.Compute(scores, carry)
	if err != nil {
		return err
	}
	com, err := distribution.Commit(d.Entries)
	if err != nil {
		return err
	}
	log.Info("Publication ready", "recipients", len(d.Entries), "excluded", d.Excluded,
		"total", utils.FormatTokens(d.Total()), "overlay", utils.FormatTokens(d.OverlayTotal),
		"carried", utils.FormatTokens(d.CarriedTotal), "root", com.Root)

	var out io.Writer = os.Stdout
	if file := ctx.String(OutputFlag.Name); file != "" {
		f, err := os.Create(file)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	_, err = com.WriteTo(out)
	return err
}

func unclaimedOfCurrent(cfg *config) ([]distribution.Allocation, error) {
	s, err := openStack(cfg)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	com, err := s.currentPublication()
	if err != nil || com == nil {
		return nil, err
	}
	carry := s.ledger.Unclaimed(s.ledger.Period(), com.Entries)
	log.Info("Carrying unclaimed balances", "period", s.ledger.Period(), "entries", len(carry),
		"total", utils.FormatTokens(distribution.SumAllocations(carry)))
	return carry, nil
}

func verifyPublication(ctx *cli.Context) error {
	file := ctx.String(PublicationFlag.Name)
	if file == "" {
		return errors.New("--publication is required")
	}
	com, err := readPublication(file)
	if err != nil {
		return err
	}
	for _, e := range com.Entries {
		if !merkle.VerifyClaim(com.Root, e.Index, e.Address, e.Amount, e.Proof) {
			fmt.Println(color.RedString("FAIL"), file)
			return errors.Errorf("proof of index %d (%s) does not verify", e.Index, e.Address.Hex())
		}
	}
	fmt.Println(color.GreenString("OK"), file)
	fmt.Printf("root:    %s\nleaves:  %d\ntotal:   %s\n", com.Root.Hex(), com.LeafCount, utils.FormatTokens(com.Total()))
	return nil
}

func publishRoot(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	file := ctx.String(PublicationFlag.Name)
	if file == "" {
		return errors.New("--publication is required")
	}
	com, err := readPublication(file)
	if err != nil {
		return err
	}
	s, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if pool := s.book.BalanceOf(cfg.Ledger.Pool); pool.Cmp(com.Total()) < 0 {
		log.Warn("Claim pool holds less than the distribution total", "pool", utils.FormatTokens(pool), "total", utils.FormatTokens(com.Total()))
	}
	period, err := s.ledger.SetRoot(cfg.Ledger.Authority, com.Root, com.LeafCount)
	if err != nil {
		return err
	}
	if err := s.storePublication(period, com); err != nil {
		// the root is live but cannot be served or carried forward
		return errlock.Permanent(cfg.DataDir, errors.Wrapf(err, "period %d published without a stored publication", period))
	}
	fmt.Printf("published period %d root %s\n", period, com.Root.Hex())
	return nil
}

func claimDistribution(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	addr, err := parseAddressFlag(ctx, AddressFlag)
	if err != nil {
		return err
	}
	s, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	com, err := s.currentPublication()
	if err != nil {
		return err
	}
	if com == nil {
		return errors.New("nothing published yet")
	}
	e, ok := com.EntryOf(addr)
	if !ok {
		return errors.Errorf("%s has no allocation in period %d", addr.Hex(), s.ledger.Period())
	}
	rec, err := s.ledger.Claim(s.ledger.Period(), e.Index, e.Address, e.Amount, e.Proof)
	if err != nil {
		return err
	}
	fmt.Printf("claimed %s for %s in period %d\n", utils.FormatTokens(rec.Amount), addr.Hex(), rec.Period)
	return nil
}

func showHistory(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	s, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	periods, err := s.storedPeriods()
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Period", "Root", "Leaves", "Claimed", "Unclaimed tokens"})
	for _, p := range periods {
		root, ok := s.ledger.RootAt(p)
		if !ok {
			continue
		}
		com, err := readPublication(s.publicationPath(p))
		if err != nil {
			return err
		}
		unclaimed := s.ledger.Unclaimed(p, com.Entries)
		table.Append([]string{
			strconv.FormatUint(uint64(p), 10),
			root.Hex(),
			strconv.FormatUint(uint64(com.LeafCount), 10),
			strconv.Itoa(len(com.Entries) - len(unclaimed)),
			utils.FormatTokens(distribution.SumAllocations(unclaimed)),
		})
	}
	table.Render()
	return nil
}

func selfDestruct(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	to, err := parseAddressFlag(ctx, SweepToFlag)
	if err != nil {
		return err
	}
	s, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	residual, err := s.ledger.SelfDestruct(cfg.Ledger.Authority, to)
	if err != nil {
		return err
	}
	fmt.Printf("swept %s to %s\n", utils.FormatTokens(residual), to.Hex())
	return nil
}
