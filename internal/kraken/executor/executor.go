// Package executor drives a graph.TaskGraph to completion: a bounded pool
// of worker goroutines executes ready tasks, results are folded back into
// the graph on a single driver goroutine, and an Observer is notified at
// every lifecycle step.
package executor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/krakenbuild/kraken/internal/kraken/graph"
	"github.com/krakenbuild/kraken/internal/kraken/status"
	"github.com/krakenbuild/kraken/internal/kraken/task"
)

// TaskExecutor runs a single task's Execute/Teardown hooks, translating
// panics and errors into a terminal status rather than propagating them.
type TaskExecutor interface {
	ExecuteTask(t *task.Task) status.Status
	TeardownTask(t *task.Task) status.Status
}

// DefaultTaskExecutor is the straightforward TaskExecutor: it calls
// straight through to the task's own hooks.
type DefaultTaskExecutor struct{}

func safeCall(fn func() (status.Status, error)) (s status.Status) {
	defer func() {
		if r := recover(); r != nil {
			s = status.Fail(fmt.Sprintf("unhandled panic: %v", r))
		}
	}()
	result, err := fn()
	if err != nil {
		return status.Fail(err.Error())
	}
	return result
}

func (DefaultTaskExecutor) ExecuteTask(t *task.Task) status.Status {
	if tags := t.GetTags("skip"); len(tags) > 0 {
		panic(fmt.Sprintf("task %s is tagged skip and must not reach the task executor", t.Address()))
	}
	return safeCall(t.Execute)
}

func (DefaultTaskExecutor) TeardownTask(t *task.Task) status.Status {
	return safeCall(t.Teardown)
}

// Observer is notified of every lifecycle event a GraphExecutor drives a
// task through. Ported from the reference implementation's
// GraphExecutorObserver.
type Observer interface {
	BeforeExecuteGraph(g *graph.TaskGraph)
	AfterExecuteGraph(g *graph.TaskGraph)
	BeforePrepareTask(t *task.Task)
	AfterPrepareTask(t *task.Task, s status.Status)
	BeforeExecuteTask(t *task.Task, s status.Status)
	OnTaskOutput(t *task.Task, chunk []byte)
	AfterExecuteTask(t *task.Task, s status.Status)
	BeforeTeardownTask(t *task.Task)
	AfterTeardownTask(t *task.Task, s status.Status)
}

// rememberer tracks, for each task that reported Started, the set of
// direct successors still outstanding. Once every watched successor has
// finished, the started task is released for teardown. Ported from
// executor/utils.py's TaskRememberer.
type rememberer struct {
	watch map[*task.Task]map[*task.Task]bool
}

func newRememberer() *rememberer {
	return &rememberer{watch: map[*task.Task]map[*task.Task]bool{}}
}

func (r *rememberer) remember(t *task.Task, successors []*task.Task) {
	set := map[*task.Task]bool{}
	for _, s := range successors {
		set[s] = true
	}
	r.watch[t] = set
}

// done reports that finished has reached a terminal state, releasing any
// watched task whose successor set is now fully settled.
func (r *rememberer) done(finished *task.Task) []*task.Task {
	var ready []*task.Task
	for watched, succs := range r.watch {
		if !succs[finished] {
			continue
		}
		delete(succs, finished)
		if len(succs) == 0 {
			delete(r.watch, watched)
			ready = append(ready, watched)
		}
	}
	return ready
}

func (r *rememberer) forgetAll() []*task.Task {
	var all []*task.Task
	for t := range r.watch {
		all = append(all, t)
	}
	r.watch = map[*task.Task]map[*task.Task]bool{}
	return all
}

// GraphExecutor drives a TaskGraph's ready tasks through Prepare/Execute/
// Teardown until it is complete or interrupted.
type GraphExecutor struct {
	taskExecutor TaskExecutor
	parallelism  int
}

// New creates a GraphExecutor bounded to parallelism concurrent
// executing/tearing-down tasks. parallelism <= 0 defaults to 1.
func New(taskExecutor TaskExecutor, parallelism int) *GraphExecutor {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &GraphExecutor{taskExecutor: taskExecutor, parallelism: parallelism}
}

// result is how a worker goroutine reports a finished execute/teardown
// call back onto the driver goroutine.
type result struct {
	apply func()
}

// Execute runs g to completion (or until an Interrupted status is
// reported), notifying observer throughout. All graph mutations and
// observer calls happen on the calling goroutine; task execution and
// teardown run on worker goroutines bounded by the executor's
// parallelism.
func (e *GraphExecutor) Execute(g *graph.TaskGraph, observer Observer) {
	sem := make(chan struct{}, e.parallelism)
	doneCh := make(chan result)
	remember := newRememberer()
	interrupted := false
	inflight := 0

	spawn := func(fn func() status.Status, onDone func(status.Status)) {
		inflight++
		go func() {
			sem <- struct{}{}
			defer func() { <-sem }()
			s := fn()
			doneCh <- result{apply: func() { onDone(s) }}
		}()
	}

	var invokeExecute func(tasks []*task.Task)
	var invokeTeardown func(tasks []*task.Task)
	var executeDone func(t *task.Task, s status.Status)
	var teardownDone func(t *task.Task, s status.Status)

	invokeExecute = func(tasks []*task.Task) {
		for _, t := range tasks {
			if interrupted {
				break
			}
			if tags := t.GetTags("skip"); len(tags) > 0 {
				reasons := make([]string, len(tags))
				for i, tag := range tags {
					reasons[i] = tag.Reason
				}
				executeDone(t, status.Skip(strings.Join(reasons, "; ")))
				continue
			}
			observer.BeforePrepareTask(t)
			s, err := t.Prepare()
			if err != nil {
				s = status.Fail(err.Error())
			}
			observer.AfterPrepareTask(t, s)
			if s.IsPending() {
				observer.BeforeExecuteTask(t, s)
				tt := t
				spawn(func() status.Status { return e.taskExecutor.ExecuteTask(tt) }, func(s status.Status) { executeDone(tt, s) })
				continue
			}
			executeDone(t, s)
		}
	}

	invokeTeardown = func(tasks []*task.Task) {
		for _, t := range tasks {
			observer.BeforeTeardownTask(t)
			tt := t
			spawn(func() status.Status { return e.taskExecutor.TeardownTask(tt) }, func(s status.Status) { teardownDone(tt, s) })
		}
	}

	executeDone = func(t *task.Task, s status.Status) {
		g.SetStatus(t, s, false)
		observer.AfterExecuteTask(t, s)
		if s.IsStarted() {
			remember.remember(t, g.GetSuccessors(t, false))
		} else {
			if s.IsInterrupted() {
				interrupted = true
			}
			invokeTeardown(remember.done(t))
		}
	}

	teardownDone = func(t *task.Task, s status.Status) {
		if s.IsInterrupted() {
			interrupted = true
		}
		g.SetStatus(t, s, false)
		observer.AfterTeardownTask(t, s)
		invokeTeardown(remember.done(t))
	}

	observer.BeforeExecuteGraph(g)

	for {
		if !interrupted && !g.IsComplete() {
			ready := g.Ready()
			if len(ready) > 0 {
				invokeExecute(ready)
			} else if inflight == 0 {
				break
			}
		} else if inflight == 0 {
			break
		}
		r := <-doneCh
		inflight--
		r.apply()
	}

	invokeTeardown(remember.forgetAll())
	for inflight > 0 {
		r := <-doneCh
		inflight--
		r.apply()
	}

	observer.AfterExecuteGraph(g)
}

// DefaultPrintingExecutorObserver is the plain-text Observer, ported from
// executor/default.py's DefaultPrintingExecutorObserver.
type DefaultPrintingExecutorObserver struct {
	ExecutePrefix  string
	TeardownPrefix string
	StatusToText   func(status.Status) string
	FormatHeader   func(string) string
	FormatDuration func(string) string
	Writer         io.Writer

	mu       sync.Mutex
	statuses map[string]status.Status
	started  map[string]time.Time
	duration map[string]time.Duration
}

// NewDefaultObserver creates a DefaultPrintingExecutorObserver that writes
// to w (os.Stdout if nil).
func NewDefaultObserver(w io.Writer) *DefaultPrintingExecutorObserver {
	if w == nil {
		w = os.Stdout
	}
	return &DefaultPrintingExecutorObserver{
		ExecutePrefix:  ">",
		TeardownPrefix: "X",
		Writer:         w,
		statuses:       map[string]status.Status{},
		started:        map[string]time.Time{},
		duration:       map[string]time.Duration{},
	}
}

func (o *DefaultPrintingExecutorObserver) statusText(s status.Status) string {
	if o.StatusToText != nil {
		return o.StatusToText(s)
	}
	if s.Message != "" {
		return fmt.Sprintf("%s (%s)", s.Type, s.Message)
	}
	return s.Type.String()
}

func (o *DefaultPrintingExecutorObserver) header(s string) string {
	if o.FormatHeader != nil {
		return o.FormatHeader(s)
	}
	return s
}

func (o *DefaultPrintingExecutorObserver) durationText(s string) string {
	if o.FormatDuration != nil {
		return o.FormatDuration(s)
	}
	return s
}

// askReportTaskStatus suppresses printing for group/void tasks that ended
// up simply skipped, matching the reference implementation's noise
// filter.
func (o *DefaultPrintingExecutorObserver) askReportTaskStatus(t *task.Task, s status.Status) bool {
	if (t.Kind() == task.KindGroup || t.Kind() == task.KindVoid) && s.IsSkipped() {
		return false
	}
	return true
}

func (o *DefaultPrintingExecutorObserver) BeforeExecuteGraph(g *graph.TaskGraph) {
	fmt.Fprintln(o.Writer)
	fmt.Fprintln(o.Writer, o.header("Start build"))
	fmt.Fprintln(o.Writer)
}

func (o *DefaultPrintingExecutorObserver) AfterExecuteGraph(g *graph.TaskGraph) {
	fmt.Fprintln(o.Writer)
	fmt.Fprintln(o.Writer, o.header("Build summary"))
	fmt.Fprintln(o.Writer)

	for _, t := range g.Tasks(graph.TaskFilter{}) {
		addrStr := t.Address().String()
		o.mu.Lock()
		s, ok := o.statuses[addrStr]
		d, hasDuration := o.duration[addrStr]
		o.mu.Unlock()
		if !ok || !o.askReportTaskStatus(t, s) {
			continue
		}
		durText := ""
		if hasDuration {
			durText = o.durationText(fmt.Sprintf("[%.3fs]", d.Seconds()))
		}
		fmt.Fprintln(o.Writer, strings.Repeat(" ", len(o.ExecutePrefix)+1)+addrStr, o.statusText(s), durText)
	}

	var notExecuted []*task.Task
	for _, t := range g.Tasks(graph.TaskFilter{NotExecuted: true}) {
		if t.Kind() != task.KindGroup {
			notExecuted = append(notExecuted, t)
		}
	}
	if len(notExecuted) != 0 {
		fmt.Fprintln(o.Writer)
		fmt.Fprintln(o.Writer, o.header("Tasks that were not executed due to failing dependencies"))
		fmt.Fprintln(o.Writer)
		for _, t := range notExecuted {
			fmt.Fprintln(o.Writer, strings.Repeat(" ", len(o.ExecutePrefix)+1)+t.Address().String())
		}
	}
	fmt.Fprintln(o.Writer)
}

func (o *DefaultPrintingExecutorObserver) BeforePrepareTask(t *task.Task) {}

func (o *DefaultPrintingExecutorObserver) AfterPrepareTask(t *task.Task, s status.Status) {}

func (o *DefaultPrintingExecutorObserver) BeforeExecuteTask(t *task.Task, s status.Status) {
	fmt.Fprintln(o.Writer, o.ExecutePrefix, t.Address().String(), o.statusText(s))
	o.mu.Lock()
	o.started[t.Address().String()] = time.Now()
	o.mu.Unlock()
}

func (o *DefaultPrintingExecutorObserver) OnTaskOutput(t *task.Task, chunk []byte) {
	o.Writer.Write(chunk)
}

func (o *DefaultPrintingExecutorObserver) AfterExecuteTask(t *task.Task, s status.Status) {
	if o.askReportTaskStatus(t, s) {
		fmt.Fprintln(o.Writer, o.ExecutePrefix, t.Address().String(), o.statusText(s))
	}
	addrStr := t.Address().String()
	o.mu.Lock()
	o.statuses[addrStr] = s
	if start, ok := o.started[addrStr]; ok {
		o.duration[addrStr] = time.Since(start)
	}
	o.mu.Unlock()
}

func (o *DefaultPrintingExecutorObserver) BeforeTeardownTask(t *task.Task) {
	fmt.Fprintln(o.Writer, o.TeardownPrefix, t.Address().String())
}

func (o *DefaultPrintingExecutorObserver) AfterTeardownTask(t *task.Task, s status.Status) {
	fmt.Fprintln(o.Writer, o.TeardownPrefix, t.Address().String(), o.statusText(s))
	addrStr := t.Address().String()
	o.mu.Lock()
	o.statuses[addrStr] = s
	o.mu.Unlock()
}
