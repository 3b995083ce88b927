package executor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/krakenbuild/kraken/internal/kraken/graph"
	"github.com/krakenbuild/kraken/internal/kraken/status"
	"github.com/krakenbuild/kraken/internal/kraken/task"
)

var statusStyles = map[status.Type]lipgloss.Style{
	status.Pending:     lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	status.Started:     lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	status.Succeeded:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	status.UpToDate:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	status.Skipped:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	status.Failed:      lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	status.Interrupted: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
}

var headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).Underline(true)
var durationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

func coloredStatusText(s status.Status) string {
	text := s.Type.String()
	if style, ok := statusStyles[s.Type]; ok {
		text = style.Render(text)
	}
	if s.Message != "" {
		text += " (" + s.Message + ")"
	}
	return text
}

// ColoredObserver is the lipgloss-styled Observer, ported from
// executor/colored.py's ColoredDefaultPrintingExecutorObserver.
type ColoredObserver struct {
	*DefaultPrintingExecutorObserver
	ExcludeTasks         []*task.Task
	ExcludeTaskSubgraphs []*task.Task
}

// NewColoredObserver creates a ColoredObserver that writes to the
// embedded DefaultPrintingExecutorObserver's writer.
func NewColoredObserver(base *DefaultPrintingExecutorObserver, excludeTasks, excludeSubgraphs []*task.Task) *ColoredObserver {
	base.StatusToText = coloredStatusText
	base.FormatHeader = func(s string) string { return headerStyle.Render(s) }
	base.FormatDuration = func(s string) string { return durationStyle.Render(s) }
	return &ColoredObserver{
		DefaultPrintingExecutorObserver: base,
		ExcludeTasks:                    excludeTasks,
		ExcludeTaskSubgraphs:            excludeSubgraphs,
	}
}

func (o *ColoredObserver) markTasksAsSkipped(g *graph.TaskGraph, tasks []*task.Task, recursive bool) {
	for _, t := range tasks {
		if _, ok := g.GetStatus(t); !ok {
			s := status.Skip("excluded")
			g.SetStatus(t, s, false)
			o.AfterExecuteTask(t, s)
		}
		if recursive {
			o.markTasksAsSkipped(g, g.GetPredecessors(t, false), true)
		}
	}
}

// BeforeExecuteGraph marks excluded tasks (and, recursively, excluded
// subgraphs) as skipped before delegating to the plain-text observer.
func (o *ColoredObserver) BeforeExecuteGraph(g *graph.TaskGraph) {
	o.DefaultPrintingExecutorObserver.BeforeExecuteGraph(g)
	o.markTasksAsSkipped(g, o.ExcludeTasks, false)
	o.markTasksAsSkipped(g, o.ExcludeTaskSubgraphs, true)
}
