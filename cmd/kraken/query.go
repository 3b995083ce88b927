package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/krakenbuild/kraken/internal/address"
	kctx "github.com/krakenbuild/kraken/internal/kraken/context"
	"github.com/krakenbuild/kraken/internal/kraken/project"
	"github.com/krakenbuild/kraken/internal/kraken/task"
)

func newQueryCmd(app *AppContext, flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect the project tree and task graph",
	}
	cmd.AddCommand(
		newQueryLsCmd(app, flags),
		newQueryDescribeCmd(app, flags),
		newQueryTreeCmd(app, flags),
		newQueryEnvCmd(app, flags),
	)
	return cmd
}

// sortedTasks returns every task reachable from the focus project (or the
// whole tree with -a), ordered by address for stable output.
func sortedTasks(buildCtx *kctx.Context, all bool) []*task.Task {
	var root *project.Project
	if !all {
		root = buildCtx.FocusProject()
	}
	var tasks []*task.Task
	for _, p := range buildCtx.IterProjects(root) {
		for _, t := range p.Tasks() {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Address().String() < tasks[j].Address().String()
	})
	return tasks
}

func newQueryLsCmd(app *AppContext, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List every task address in scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range sortedTasks(app.Context, flags.all) {
				marker := " "
				if t.Default() {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, t.Address().String())
			}
			return nil
		},
	}
}

func newQueryDescribeCmd(app *AppContext, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <address>",
		Short: "Describe a task: kind, default flag, description, member count (tags and dependencies are not listed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buildCtx := app.Context
			var relativeTo address.Address
			if focus := buildCtx.FocusProject(); focus != nil {
				relativeTo = focus.Address()
			}
			tasks, err := buildCtx.ResolveTasks([]string{args[0]}, relativeTo, false)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, t := range tasks {
				fmt.Fprintf(out, "%s\n", t.Address().String())
				fmt.Fprintf(out, "  kind:        %s\n", t.Kind())
				fmt.Fprintf(out, "  default:     %t\n", t.Default())
				if desc := t.Description(); desc != "" {
					fmt.Fprintf(out, "  description: %s\n", desc)
				}
				if len(t.Members()) > 0 {
					fmt.Fprintf(out, "  members:     %d\n", len(t.Members()))
				}
			}
			return nil
		},
	}
}

func newQueryEnvCmd(app *AppContext, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the resolved build configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := app.Config
			fmt.Fprintf(out, "projectDir:     %s\n", flags.projectDir)
			fmt.Fprintf(out, "buildDir:       %s\n", app.Context.BuildDirectory())
			fmt.Fprintf(out, "stateDirectory: %s\n", cfg.StateDirectory)
			fmt.Fprintf(out, "parallelism:    %d\n", cfg.Parallelism)
			fmt.Fprintf(out, "logLevel:       %s\n", cfg.LogLevel)
			fmt.Fprintf(out, "colorMode:      %s\n", cfg.ColorMode)
			if focus := app.Context.FocusProject(); focus != nil {
				fmt.Fprintf(out, "focusProject:   %s\n", focus.Address().String())
			}
			return nil
		},
	}
}
