package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/krakenbuild/kraken/internal/address"
	kctx "github.com/krakenbuild/kraken/internal/kraken/context"
	"github.com/krakenbuild/kraken/internal/kraken/graph"
	"github.com/krakenbuild/kraken/internal/kraken/task"
)

// selectedRowStyle and defaultTagStyle mirror the palette
// internal/kraken/executor/colored.go uses
// for status output, reused here so the interactive tree and the plain
// build log read consistently.
var (
	selectedRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	defaultTagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

func newQueryTreeCmd(app *AppContext, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [addresses...]",
		Short: "Browse the resolved task graph interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			buildCtx := app.Context
			var relativeTo address.Address
			if focus := buildCtx.FocusProject(); focus != nil {
				relativeTo = focus.Address()
			}

			var addresses []string
			if len(args) > 0 {
				addresses = args
			} else if flags.all {
				addresses = []string{"**:"}
			}

			tasks, err := buildCtx.ResolveTasks(addresses, relativeTo, false)
			if err != nil {
				return err
			}

			g, err := buildCtx.GetBuildGraph(taskAddresses(tasks))
			if err != nil {
				return err
			}

			m := newTreeModel(g)
			if !isTerminal(os.Stdout) {
				fmt.Fprint(cmd.OutOrStdout(), m.renderPlain())
				return nil
			}

			p := tea.NewProgram(m)
			_, err = p.Run()
			return err
		},
	}
}

func taskAddresses(tasks []*task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Address().String())
	}
	return out
}

// treeModel is a minimal Bubbletea model listing every task in the graph
// with its dependency count, cursor-navigable with the arrow keys.
type treeModel struct {
	graph    *graph.TaskGraph
	tasks    []*task.Task
	cursor   int
	quitting bool
}

func newTreeModel(g *graph.TaskGraph) treeModel {
	tasks := g.Tasks(graph.TaskFilter{})
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Address().String() < tasks[j].Address().String()
	})
	return treeModel{graph: g, tasks: tasks}
}

func (m treeModel) Init() tea.Cmd { return nil }

func (m treeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.tasks)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m treeModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d tasks — ↑/↓ to move, q to quit\n\n", len(m.tasks)))
	for i, t := range m.tasks {
		line := t.Address().String()
		deps := m.graph.GetPredecessors(t, false)
		if len(deps) > 0 {
			line += fmt.Sprintf(" (%d deps)", len(deps))
		}
		if t.Default() {
			line = defaultTagStyle.Render("[default] ") + line
		}
		if i == m.cursor {
			line = selectedRowStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// renderPlain lists every task with its dependency count, one per line and
// without cursor state or styling, for non-interactive stdout (piped output,
// CI) where launching the Bubbletea program would hang or error.
func (m treeModel) renderPlain() string {
	var b strings.Builder
	for _, t := range m.tasks {
		line := t.Address().String()
		if t.Default() {
			line = "[default] " + line
		}
		deps := m.graph.GetPredecessors(t, false)
		if len(deps) > 0 {
			line += fmt.Sprintf(" (%d deps)", len(deps))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
