package main

import (
	"github.com/spf13/cobra"

	"github.com/krakenbuild/kraken/internal/address"
)

// newRunCmd builds the "run" subcommand: resolve the given task addresses
// (default tasks under the focus project if none given, or -a for every
// task) and execute the resulting build graph.
func newRunCmd(app *AppContext, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run [addresses...]",
		Short: "Execute a build graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			buildCtx := app.Context

			var addresses []string
			switch {
			case len(args) > 0:
				addresses = args
			case flags.all:
				addresses = []string{"**:"}
			default:
				addresses = nil // Context.ResolveTasks' own default: focus + every subproject's default tasks.
			}

			var relativeTo address.Address
			if focus := buildCtx.FocusProject(); focus != nil {
				relativeTo = focus.Address()
			}

			tasks, err := buildCtx.ResolveTasks(addresses, relativeTo, true)
			if err != nil {
				return err
			}

			targets := make([]string, 0, len(tasks))
			for _, t := range tasks {
				targets = append(targets, t.Address().String())
			}

			return buildCtx.Execute(targets)
		},
	}
}
