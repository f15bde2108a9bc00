package launcher

import (
	"os"
	"sort"

	"gopkg.in/urfave/cli.v1"

	"github.com/unicornultrafoundation/go-u2u-distribution/logger"
)

const clientIdentifier = "u2u-distributor"

var (
	// Git SHA1 commit hash of the release (set via linker flags).
	gitCommit = ""

	VerbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	LogJSONFlag = cli.BoolFlag{
		Name:  "log.json",
		Usage: "Format logs with JSON",
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = clientIdentifier
	app.Usage = "compute, publish and pay out U2U token distributions and vesting grants"
	app.Version = "1.0.0"
	if gitCommit != "" {
		app.Version += "-" + gitCommit
	}
	app.Flags = []cli.Flag{
		configFileFlag,
		DataDirFlag,
		VerbosityFlag,
		LogJSONFlag,
	}
	app.Commands = []cli.Command{
		computeCommand,
		verifyCommand,
		publishCommand,
		claimCommand,
		historyCommand,
		destroyCommand,
		vestingCommand,
		tokenCommand,
		serveCommand,
		dumpConfigCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	app.Before = func(ctx *cli.Context) error {
		logger.Setup(ctx.GlobalInt(VerbosityFlag.Name), ctx.GlobalBool(LogJSONFlag.Name))
		return nil
	}
	return app
}

// Run starts the command line interface.
func Run() error {
	return newApp().Run(os.Args)
}
