package launcher

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/unicornultrafoundation/go-u2u-distribution/checkpoint"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils"
	"github.com/unicornultrafoundation/go-u2u-distribution/vesting"
)

var (
	GrantsFileFlag = cli.StringFlag{
		Name:  "grants",
		Usage: "JSON array of {address, amount, start} vesting grants",
	}
	CheckpointFlag = cli.StringFlag{
		Name:  "checkpoint",
		Usage: "Name of the processed-address checkpoint of a batch funding",
		Value: "vesting-fund",
	}
	AmountFlag = cli.StringFlag{
		Name:  "amount",
		Usage: "Token amount, up to 18 decimals",
	}
	OnceFlag = cli.BoolFlag{
		Name:  "once",
		Usage: "Reject grants for addresses that already have a schedule",
	}
	NewAddressFlag = cli.StringFlag{
		Name:  "to",
		Usage: "New recipient address",
	}

	vestingCommand = cli.Command{
		Name:     "vesting",
		Usage:    "Manage the vesting escrow",
		Category: "VESTING COMMANDS",
		Subcommands: []cli.Command{
			{
				Action: vestingFund,
				Name:   "fund",
				Usage:  "Fund the grants of a file, skipping addresses already processed by the checkpoint",
				Flags:  []cli.Flag{GrantsFileFlag, CheckpointFlag, OnceFlag},
			},
			{
				Action: vestingStatus,
				Name:   "status",
				Usage:  "Show the escrow supply and the status of one or every recipient",
				Flags:  []cli.Flag{AddressFlag},
			},
			{
				Action: vestingClaim,
				Name:   "claim",
				Usage:  "Claim the vested balance of an address, or a part of it with --amount",
				Flags:  []cli.Flag{AddressFlag, AmountFlag},
			},
			{
				Action: vestingAllocation(func(e *vesting.Escrow, cfg *config, s adminArgs) error {
					return e.IncreaseAllocation(cfg.Vesting.Authority, s.addr, s.amount)
				}),
				Name:  "increase",
				Usage: "Increase the allocation of an address",
				Flags: []cli.Flag{AddressFlag, AmountFlag},
			},
			{
				Action: vestingAllocation(func(e *vesting.Escrow, cfg *config, s adminArgs) error {
					return e.DecreaseAllocation(cfg.Vesting.Authority, s.addr, s.amount)
				}),
				Name:  "decrease",
				Usage: "Decrease the unvested allocation of an address",
				Flags: []cli.Flag{AddressFlag, AmountFlag},
			},
			{
				Action: vestingToggle((*vesting.Escrow).PauseClaim),
				Name:   "pause",
				Usage:  "Freeze the claimable amount of an address",
				Flags:  []cli.Flag{AddressFlag},
			},
			{
				Action: vestingToggle((*vesting.Escrow).UnpauseClaim),
				Name:   "unpause",
				Usage:  "Resume accrual of a paused address",
				Flags:  []cli.Flag{AddressFlag},
			},
			{
				Action: vestingToggle((*vesting.Escrow).DisableClaim),
				Name:   "disable",
				Usage:  "Block claims of an address",
				Flags:  []cli.Flag{AddressFlag},
			},
			{
				Action: vestingToggle((*vesting.Escrow).EnableClaim),
				Name:   "enable",
				Usage:  "Re-enable claims of an address",
				Flags:  []cli.Flag{AddressFlag},
			},
			{
				Action: vestingChangeWallet,
				Name:   "changewallet",
				Usage:  "Move the schedule of an address to a new one",
				Flags:  []cli.Flag{AddressFlag, NewAddressFlag},
			},
		},
	}
)

type adminArgs struct {
	addr   common.Address
	amount *big.Int
}

func withStack(ctx *cli.Context, fn func(*stack) error) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	s, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func vestingFund(ctx *cli.Context) error {
	file := ctx.String(GrantsFileFlag.Name)
	if file == "" {
		return errors.New("--grants is required")
	}
	grants, err := readGrants(file)
	if err != nil {
		return err
	}
	return withStack(ctx, func(s *stack) error {
		processed, err := checkpoint.OpenProcessedSet(s.db, ctx.String(CheckpointFlag.Name))
		if err != nil {
			return err
		}
		fund := s.escrow.FundBatch
		if ctx.Bool(OnceFlag.Name) {
			fund = s.escrow.FundNewBatch
		}
		funded, err := fund(s.cfg.Vesting.Authority, grants, processed)
		fmt.Printf("funded %d of %d grants, %d addresses processed in total\n", funded, len(grants), processed.Len())
		return err
	})
}

func vestingStatus(ctx *cli.Context) error {
	return withStack(ctx, func(s *stack) error {
		now := uint64(s.clock.Now().Unix())
		var rows []vesting.Status
		if ctx.IsSet(AddressFlag.Name) {
			addr, err := parseAddressFlag(ctx, AddressFlag)
			if err != nil {
				return err
			}
			rows = append(rows, s.escrow.Status(addr, now))
		} else {
			rows = s.escrow.Recipients(now)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Address", "Locked", "Vested", "Claimable", "Claimed", "End", "Flags"})
		for _, st := range rows {
			flags := ""
			if st.Paused {
				flags += "paused "
			}
			if st.Disabled {
				flags += "disabled"
			}
			table.Append([]string{
				st.Address.Hex(),
				utils.FormatTokens(st.Locked),
				utils.FormatTokens(st.Vested),
				utils.FormatTokens(st.Claimable),
				utils.FormatTokens(st.Claimed),
				time.Unix(int64(st.EndTime), 0).UTC().Format(time.RFC3339),
				flags,
			})
		}
		sup := s.escrow.Supply(now)
		table.SetFooter([]string{
			fmt.Sprintf("%d recipients", sup.Recipients),
			utils.FormatTokens(sup.Locked),
			utils.FormatTokens(sup.Vested),
			"",
			utils.FormatTokens(sup.TotalClaimedAllTime),
			"initial " + utils.FormatTokens(sup.InitialLockedSupply),
			"",
		})
		table.Render()
		return nil
	})
}

func vestingClaim(ctx *cli.Context) error {
	addr, err := parseAddressFlag(ctx, AddressFlag)
	if err != nil {
		return err
	}
	return withStack(ctx, func(s *stack) error {
		var paid *big.Int
		if ctx.IsSet(AmountFlag.Name) {
			amount, err := utils.ParseTokens(ctx.String(AmountFlag.Name))
			if err != nil {
				return err
			}
			paid, err = s.escrow.PartialClaim(addr, amount)
			if err != nil {
				return err
			}
		} else {
			paid, err = s.escrow.Claim(addr)
			if err != nil {
				return err
			}
		}
		fmt.Printf("claimed %s for %s\n", utils.FormatTokens(paid), addr.Hex())
		return nil
	})
}

func vestingAllocation(fn func(*vesting.Escrow, *config, adminArgs) error) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		addr, err := parseAddressFlag(ctx, AddressFlag)
		if err != nil {
			return err
		}
		amount, err := utils.ParseTokens(ctx.String(AmountFlag.Name))
		if err != nil {
			return err
		}
		return withStack(ctx, func(s *stack) error {
			return fn(s.escrow, s.cfg, adminArgs{addr: addr, amount: amount})
		})
	}
}

func vestingToggle(fn func(e *vesting.Escrow, caller, addr common.Address) error) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		addr, err := parseAddressFlag(ctx, AddressFlag)
		if err != nil {
			return err
		}
		return withStack(ctx, func(s *stack) error {
			return fn(s.escrow, s.cfg.Vesting.Authority, addr)
		})
	}
}

func vestingChangeWallet(ctx *cli.Context) error {
	from, err := parseAddressFlag(ctx, AddressFlag)
	if err != nil {
		return err
	}
	to, err := parseAddressFlag(ctx, NewAddressFlag)
	if err != nil {
		return err
	}
	return withStack(ctx, func(s *stack) error {
		return s.escrow.ChangeWallet(s.cfg.Vesting.Authority, from, to)
	})
}
