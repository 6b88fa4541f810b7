// Command instrumentd runs escrow-backed instruments against a SQLite
// action journal.
//
// Usage:
//
//	instrumentd validate catalog.cue                      # Check a catalog
//	instrumentd exec --config catalog.cue actions.yaml    # Execute actions
//	instrumentd replay --config catalog.cue               # Verify the journal
//	instrumentd trace --instrument 1 --issuance 1         # Show journaled events
//	instrumentd show --config catalog.cue --name loans    # Show rebuilt state
//	instrumentd test ./scenarios                          # Run lifecycle scenarios
package main

import (
	"fmt"
	"os"

	"github.com/roach88/instrumentd/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
