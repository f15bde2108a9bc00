package logger

import (
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Setup installs the root handler used by the command line tool.
// Verbosity follows the go-ethereum scale: 0=crit ... 5=trace.
func Setup(verbosity int, json bool) {
	var (
		output io.Writer = os.Stderr
		level            = log.FromLegacyLevel(verbosity)
	)
	if json {
		log.SetDefault(log.NewLogger(log.JSONHandlerWithLevel(output, level)))
		return
	}
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if useColor {
		output = colorable.NewColorableStderr()
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(output, level, useColor)))
}
