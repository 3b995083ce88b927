package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the kraken command tree: run, query ls/describe/tree/env.
// Persistent flags match the CLI surface exactly.
func newRootCmd(app *AppContext) *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "kraken",
		Short:         "Kraken build orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateGlobalFlags(*flags); err != nil {
				return err
			}
			return bootstrapContext(app, flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.projectDir, "project-dir", "p", ".", "project directory to build from")
	pf.StringVarP(&flags.buildDir, "build-dir", "b", "", "build directory (defaults to the project directory)")
	pf.StringVar(&flags.stateDir, "state-dir", "", "state directory (defaults to <build-dir>/.kraken/state)")
	pf.StringSliceVarP(&flags.exclude, "exclude", "x", nil, "exclude these task addresses from execution")
	pf.StringSliceVarP(&flags.excludeSubgraph, "exclude-subgraph", "X", nil, "exclude these task addresses and everything they depend on")
	pf.BoolVarP(&flags.all, "all", "a", false, "select every task, not just default tasks")
	pf.CountVarP(&flags.verbose, "verbose", "v", "increase log verbosity")
	pf.CountVarP(&flags.quiet, "quiet", "q", "decrease log verbosity")

	cmd.AddCommand(
		newRunCmd(app, flags),
		newQueryCmd(app, flags),
	)

	return cmd
}
