package main

import (
	"fmt"
	"os"

	"github.com/unicornultrafoundation/go-u2u-distribution/cmd/u2u-distributor/launcher"
)

func main() {
	if err := launcher.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
