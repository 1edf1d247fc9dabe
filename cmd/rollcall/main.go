// Package main is the entry point for the rollcall CLI.
package main

import (
	"os"

	"github.com/roach88/rollcall/internal/cli"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = version
	if err := cmd.Execute(); err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
