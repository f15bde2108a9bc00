package launcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/unicornultrafoundation/go-u2u-distribution/api"
	"github.com/unicornultrafoundation/go-u2u-distribution/claimledger"
	"github.com/unicornultrafoundation/go-u2u-distribution/monitoring/prometheus"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils"
)

var (
	HTTPListenFlag = cli.StringFlag{
		Name:  "http.addr",
		Usage: "HTTP API listening address",
	}
	MetricsEnabledFlag = cli.BoolFlag{
		Name:  "metrics",
		Usage: "Serve prometheus metrics on Monitoring.HTTP:Monitoring.Port",
	}

	serveCommand = cli.Command{
		Action:    serve,
		Name:      "serve",
		Usage:     "Serve the published distribution and the vesting status over HTTP",
		ArgsUsage: "",
		Flags: []cli.Flag{
			HTTPListenFlag,
			MetricsEnabledFlag,
		},
		Category: "SERVICE COMMANDS",
	}

	tokenCommand = cli.Command{
		Name:     "token",
		Usage:    "Inspect and seed token balances",
		Category: "SERVICE COMMANDS",
		Subcommands: []cli.Command{
			{
				Action: tokenMint,
				Name:   "mint",
				Usage:  "Credit tokens to an address, e.g. the authority or the claim pool",
				Flags:  []cli.Flag{AddressFlag, AmountFlag},
			},
			{
				Action: tokenBalance,
				Name:   "balance",
				Usage:  "Show the balance of an address",
				Flags:  []cli.Flag{AddressFlag},
			},
		},
	}
)

func serve(ctx *cli.Context) error {
	return withStack(ctx, func(s *stack) error {
		apiCfg := s.cfg.API
		if ctx.IsSet(HTTPListenFlag.Name) {
			apiCfg.ListenAddr = ctx.String(HTTPListenFlag.Name)
		}
		srv := api.New(apiCfg, s.ledger, s.escrow, s.clock)
		com, err := s.currentPublication()
		if err != nil {
			return err
		}
		if com != nil {
			srv.SetCommitment(com)
		}

		runCtx, cancel := signalContext()
		defer cancel()

		if ctx.Bool(MetricsEnabledFlag.Name) {
			endpoint := s.cfg.Monitoring.Endpoint()
			if endpoint == "" {
				return errors.New("--metrics needs Monitoring.HTTP to be set")
			}
			prometheus.PrometheusListener(runCtx, endpoint, nil)
		}

		// log claims as they happen
		claims := make(chan claimledger.ClaimRecord, 16)
		sub := s.ledger.SubscribeClaims(claims)
		defer sub.Unsubscribe()
		go func() {
			for {
				select {
				case rec := <-claims:
					log.Info("Claim", "period", rec.Period, "index", rec.Index, "account", rec.Account, "amount", utils.FormatTokens(rec.Amount))
				case <-sub.Err():
					return
				}
			}
		}()

		return srv.ListenAndServe(runCtx)
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)

		select {
		case <-sigc:
			log.Info("Got interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func tokenMint(ctx *cli.Context) error {
	addr, err := parseAddressFlag(ctx, AddressFlag)
	if err != nil {
		return err
	}
	amount, err := utils.ParseTokens(ctx.String(AmountFlag.Name))
	if err != nil {
		return err
	}
	return withStack(ctx, func(s *stack) error {
		if err := s.book.Mint(addr, amount); err != nil {
			return err
		}
		fmt.Printf("minted %s to %s\n", utils.FormatTokens(amount), addr.Hex())
		return nil
	})
}

func tokenBalance(ctx *cli.Context) error {
	addr, err := parseAddressFlag(ctx, AddressFlag)
	if err != nil {
		return err
	}
	return withStack(ctx, func(s *stack) error {
		fmt.Printf("%s %s\n", addr.Hex(), utils.FormatTokens(s.book.BalanceOf(addr)))
		return nil
	})
}
