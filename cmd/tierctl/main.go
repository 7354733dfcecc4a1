// Package main is the entry point for the tierctl CLI.
//
// tierctl converges a declarative plan of interdependent resources and,
// when the time comes, replays the plan's recovery groups as a phased
// failover sequence.
//
// Commands: deploy, failover, validate, version.
//
// For detailed usage information, run:
//
//	tierctl --help
package main

import (
	"fmt"
	"os"

	"github.com/tierctl/tierctl/cmd/tierctl/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
