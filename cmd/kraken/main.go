// Command kraken drives the build orchestrator's CLI surface: run, and
// the query ls/describe/tree/env inspection subcommands.
package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	app := &AppContext{}
	cmd := newRootCmd(app)
	cmd.SetArgs(os.Args[1:])

	if os.Getenv("KRAKENW") == "1" {
		cmd.Annotations = map[string]string{"wrapped": "1"}
	}

	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "kraken:", err)
		if os.Getenv("KRAKEN_PDB") == "1" {
			fmt.Fprintln(os.Stderr, "kraken: KRAKEN_PDB=1 requested post-mortem, but this build carries no debugger hook")
		}
	}
	return exitCodeFor(err)
}
