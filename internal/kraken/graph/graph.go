// Package graph implements Kraken's TaskGraph: a directed
// graph over tasks built from their declared and property-inferred
// relationships, with group-membership edges expanded implicitly, and
// the trim/reduce/ready/mark-as-skipped operations the executor and CLI
// drive a build through.
package graph

import (
	"fmt"
	"sort"

	"github.com/krakenbuild/kraken/internal/address"
	"github.com/krakenbuild/kraken/internal/kraken/status"
	"github.com/krakenbuild/kraken/internal/kraken/task"
	kerrors "github.com/krakenbuild/kraken/pkg/errors"
)

// edge is the merged strict/implicit state of a dependency arrow u->v
// (u must complete before v). Parallel edges from different
// relationships merge with strict=OR, implicit=AND, per the reference
// implementation's _add_edge.
type edge struct {
	strict   bool
	implicit bool
}

// TaskLister supplies every task known to the owning context, used by
// Populate when no explicit goal set is given.
type TaskLister func() []*task.Task

// TaskGraph is a directed acyclic graph over *task.Task, keyed by
// address.
type TaskGraph struct {
	parent  *TaskGraph
	resolve task.Resolver
	lister  TaskLister

	nodes   map[string]*task.Task
	forward map[string]map[string]*edge // u -> v -> edge(u->v)
	reverse map[string]map[string]bool  // v -> set of u

	results         map[string]status.Status
	okTasks         map[string]bool
	failedTasks     map[string]bool
	backgroundTasks map[string]bool
}

// New creates an empty graph. resolve is used to turn address-based
// relationships into concrete tasks; lister enumerates every task in the
// owning context for an unscoped Populate call.
func New(resolve task.Resolver, lister TaskLister) *TaskGraph {
	return &TaskGraph{
		resolve:         resolve,
		lister:          lister,
		nodes:           map[string]*task.Task{},
		forward:         map[string]map[string]*edge{},
		reverse:         map[string]map[string]bool{},
		results:         map[string]status.Status{},
		okTasks:         map[string]bool{},
		failedTasks:     map[string]bool{},
		backgroundTasks: map[string]bool{},
	}
}

func key(t *task.Task) string { return t.Address().String() }

func (g *TaskGraph) hasNode(t *task.Task) bool {
	_, ok := g.nodes[key(t)]
	return ok
}

func (g *TaskGraph) getTask(addr address.Address) *task.Task { return g.nodes[addr.String()] }

// Len reports the number of tasks in the graph.
func (g *TaskGraph) Len() int { return len(g.nodes) }

// IsEmpty reports whether the graph contains no tasks.
func (g *TaskGraph) IsEmpty() bool { return len(g.nodes) == 0 }

func (g *TaskGraph) addNode(t *task.Task) {
	g.nodes[key(t)] = t
}

func (g *TaskGraph) getEdge(u, v *task.Task) *edge {
	m, ok := g.forward[key(u)]
	if !ok {
		return nil
	}
	return m[key(v)]
}

func (g *TaskGraph) addEdge(u, v *task.Task, strict, implicit bool) {
	uk, vk := key(u), key(v)
	if g.forward[uk] == nil {
		g.forward[uk] = map[string]*edge{}
	}
	e := g.forward[uk][vk]
	if e == nil {
		e = &edge{strict: strict, implicit: implicit}
	} else {
		e.strict = e.strict || strict
		e.implicit = e.implicit && implicit
	}
	g.forward[uk][vk] = e
	if g.reverse[vk] == nil {
		g.reverse[vk] = map[string]bool{}
	}
	g.reverse[vk][uk] = true
}

func otherTask(e task.Edge, t *task.Task) *task.Task {
	if e.From == t {
		return e.To
	}
	return e.From
}

func containsMember(members []*task.Task, candidate *task.Task) bool {
	for _, m := range members {
		if m == candidate {
			return true
		}
	}
	return false
}

// addTask inserts t and recursively everything it (transitively)
// depends on, wiring explicit and group-implied edges.
func (g *TaskGraph) addTask(t *task.Task) error {
	if g.hasNode(t) {
		return nil
	}
	g.addNode(t)

	rels, err := t.GetRelationships(g.resolve)
	if err != nil {
		return err
	}

	for _, rel := range rels {
		other := otherTask(rel, t)
		if !g.hasNode(other) {
			if err := g.addTask(other); err != nil {
				return err
			}
		}
		// upstream (rel.To) must run before downstream (rel.From).
		upstream, downstream := rel.To, rel.From
		g.addEdge(upstream, downstream, rel.Strict, false)

		if t.Kind() == task.KindGroup && !rel.Inverse && containsMember(t.Members(), other) {
			continue
		}

		if downstream.Kind() == task.KindGroup {
			queue := append([]*task.Task{}, downstream.Members()...)
			for len(queue) > 0 {
				member := queue[0]
				queue = queue[1:]
				if !g.hasNode(member) {
					if err := g.addTask(member); err != nil {
						return err
					}
				}
				if member.Kind() == task.KindGroup {
					queue = append(queue, member.Members()...)
					continue
				}
				if upstream != member {
					g.addEdge(upstream, member, rel.Strict, true)
				}
			}
		}
	}
	return nil
}

// Populate adds goals (or, if nil, every task from the lister) and their
// transitive relationships to the graph.
func (g *TaskGraph) Populate(goals []*task.Task) error {
	if goals == nil {
		goals = g.lister()
	}
	for _, t := range goals {
		if !g.hasNode(t) {
			if err := g.addTask(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *TaskGraph) predecessors(t *task.Task) []*task.Task {
	var out []*task.Task
	for uk := range g.reverse[key(t)] {
		out = append(out, g.nodes[uk])
	}
	sortTasks(out)
	return out
}

func (g *TaskGraph) successors(t *task.Task) []*task.Task {
	var out []*task.Task
	for vk := range g.forward[key(t)] {
		out = append(out, g.nodes[vk])
	}
	sortTasks(out)
	return out
}

func sortTasks(ts []*task.Task) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Address().String() < ts[j].Address().String() })
}

// GetPredecessors returns the predecessors of t in this graph.
// With ignoreGroups, group-task predecessors are replaced by their
// members.
func (g *TaskGraph) GetPredecessors(t *task.Task, ignoreGroups bool) []*task.Task {
	var out []*task.Task
	for _, pred := range g.predecessors(t) {
		if ignoreGroups && pred.Kind() == task.KindGroup {
			out = append(out, pred.Members()...)
		} else {
			out = append(out, pred)
		}
	}
	return out
}

// GetSuccessors returns the successors of t in this graph. With
// ignoreGroups, group-task successors are replaced by their members.
func (g *TaskGraph) GetSuccessors(t *task.Task, ignoreGroups bool) []*task.Task {
	var out []*task.Task
	for _, succ := range g.successors(t) {
		if ignoreGroups && succ.Kind() == task.KindGroup {
			out = append(out, succ.Members()...)
		} else {
			out = append(out, succ)
		}
	}
	return out
}

// isEmptyGroupSubtree reports whether t is a GroupTask that is
// itself empty or whose every predecessor is also an empty group
// subtree (transitively).
func (g *TaskGraph) isEmptyGroupSubtree(t *task.Task, visiting map[string]bool) bool {
	if t.Kind() != task.KindGroup {
		return false
	}
	if len(t.Members()) == 0 {
		return true
	}
	k := key(t)
	if visiting[k] {
		return false
	}
	visiting[k] = true
	for _, pred := range g.predecessors(t) {
		if !g.isEmptyGroupSubtree(pred, visiting) {
			return false
		}
	}
	return true
}

// getRequiredTasks returns every task transitively required (via strict
// edges) by goals, skipping empty group subtrees.
func (g *TaskGraph) getRequiredTasks(goals []*task.Task) (map[string]bool, error) {
	active := map[string]bool{}
	var recurse func(t *task.Task, path map[string]bool, order []string) error
	recurse = func(t *task.Task, path map[string]bool, order []string) error {
		k := key(t)
		if path[k] {
			return kerrors.NewGraphError(fmt.Sprintf("encountered a dependency cycle: %v", append(order, k)))
		}
		active[k] = true
		nextPath := map[string]bool{}
		for p := range path {
			nextPath[p] = true
		}
		nextPath[k] = true
		for _, pred := range g.predecessors(t) {
			e := g.getEdge(pred, t)
			if e == nil || !e.strict {
				continue
			}
			if pred.Kind() == task.KindGroup && g.isEmptyGroupSubtree(pred, map[string]bool{}) {
				continue
			}
			if err := recurse(pred, nextPath, append(order, k)); err != nil {
				return err
			}
		}
		return nil
	}
	for _, goal := range goals {
		if err := recurse(goal, map[string]bool{}, nil); err != nil {
			return nil, err
		}
	}
	return active, nil
}

// removeNodesKeepTransitiveEdges deletes every task whose key is in
// remove, first reconnecting each predecessor to each successor so
// transitive dependencies survive the removal.
func (g *TaskGraph) removeNodesKeepTransitiveEdges(remove map[string]bool) {
	for k := range remove {
		t := g.nodes[k]
		preds := g.predecessors(t)
		succs := g.successors(t)
		for _, in := range preds {
			inEdge := g.getEdge(in, t)
			for _, out := range succs {
				outEdge := g.getEdge(t, out)
				g.addEdge(in, out, inEdge.strict || outEdge.strict, inEdge.implicit && outEdge.implicit)
			}
		}
		delete(g.nodes, k)
		delete(g.forward, k)
		delete(g.reverse, k)
		for _, m := range g.forward {
			delete(m, k)
		}
		for _, m := range g.reverse {
			delete(m, k)
		}
	}
}

// Trim returns a copy of the graph restricted to goals and their strict
// dependencies.
func (g *TaskGraph) Trim(goals []*task.Task) (*TaskGraph, error) {
	trimmed := New(g.resolve, g.lister)
	trimmed.parent = g
	for k, t := range g.nodes {
		trimmed.nodes[k] = t
	}
	for u, m := range g.forward {
		trimmed.forward[u] = map[string]*edge{}
		for v, e := range m {
			ec := *e
			trimmed.forward[u][v] = &ec
		}
	}
	for v, m := range g.reverse {
		trimmed.reverse[v] = map[string]bool{}
		for u := range m {
			trimmed.reverse[v][u] = true
		}
	}

	required, err := trimmed.getRequiredTasks(goals)
	if err != nil {
		return nil, err
	}
	unrequired := map[string]bool{}
	for k := range trimmed.nodes {
		if !required[k] {
			unrequired[k] = true
		}
	}
	trimmed.removeNodesKeepTransitiveEdges(unrequired)
	trimmed.resultsFrom(g)
	return trimmed, nil
}

// reachableExcluding reports whether v is reachable from u using only
// edges other than the direct u->v arrow; used by Reduce to find
// redundant edges.
func (g *TaskGraph) reachableExcluding(u, v *task.Task) bool {
	visited := map[string]bool{}
	var stack []*task.Task
	for _, succ := range g.successors(u) {
		if succ == v {
			continue
		}
		stack = append(stack, succ)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == v {
			return true
		}
		k := key(n)
		if visited[k] {
			continue
		}
		visited[k] = true
		stack = append(stack, g.successors(n)...)
	}
	return false
}

// Reduce returns a copy of the graph with redundant edges removed
// (transitive reduction). With keepExplicit, non-implicit edges are
// always kept even if redundant.
func (g *TaskGraph) Reduce(keepExplicit bool) *TaskGraph {
	reduced := New(g.resolve, g.lister)
	reduced.parent = g
	for k, t := range g.nodes {
		reduced.nodes[k] = t
	}
	for uk, m := range g.forward {
		u := g.nodes[uk]
		for vk, e := range m {
			v := g.nodes[vk]
			if keepExplicit && !e.implicit {
				reduced.addEdge(u, v, e.strict, e.implicit)
				continue
			}
			if !g.reachableExcluding(u, v) {
				reduced.addEdge(u, v, e.strict, e.implicit)
			}
		}
	}
	reduced.resultsFrom(g)
	return reduced
}

// resultsFrom merges results from other into this graph, preferring the
// not-ok status when both graphs have a result for the same task.
func (g *TaskGraph) resultsFrom(other *TaskGraph) {
	for k, s := range other.results {
		if _, ok := g.results[k]; !ok {
			g.results[k] = s
		}
	}
	for k := range other.okTasks {
		g.okTasks[k] = true
	}
	for k := range other.failedTasks {
		g.failedTasks[k] = true
	}

	for k := range g.nodes {
		sa, hasA := g.results[k]
		sb, hasB := other.results[k]
		var resolved *status.Status
		switch {
		case hasA && hasB && sa.Type != sb.Type:
			if !sa.IsOk() {
				resolved = &sa
			} else {
				resolved = &sb
			}
		case hasA:
			resolved = &sa
		case hasB:
			resolved = &sb
		}
		if resolved != nil {
			g.SetStatus(g.nodes[k], *resolved, true)
		}
	}
}

// SetStatus sets the status of a task, marking it as executed. Unless
// force is set, re-setting a non-started status is an error.
func (g *TaskGraph) SetStatus(t *task.Task, s status.Status, force bool) {
	k := key(t)
	if !force {
		if prev, ok := g.results[k]; ok && !prev.IsStarted() {
			panic(fmt.Sprintf("already have a status for task %q", k))
		}
	}
	g.results[k] = s
	if s.IsStarted() {
		g.backgroundTasks[k] = true
	}
	if s.IsOk() {
		g.okTasks[k] = true
	}
	if s.IsFailed() {
		g.failedTasks[k] = true
	}
}

// GetStatus returns the recorded status of a task, if any.
func (g *TaskGraph) GetStatus(t *task.Task) (status.Status, bool) {
	s, ok := g.results[key(t)]
	return s, ok
}

// IsComplete reports whether every task in the graph has an ok result.
func (g *TaskGraph) IsComplete() bool {
	for k := range g.nodes {
		if !g.okTasks[k] {
			return false
		}
	}
	return true
}

// TaskFilter selects a subset of Tasks.
type TaskFilter struct {
	Goals       bool
	Pending     bool
	Failed      bool
	NotExecuted bool
}

// Tasks returns the graph's tasks, optionally filtered.
func (g *TaskGraph) Tasks(filter TaskFilter) []*task.Task {
	var out []*task.Task
	for k, t := range g.nodes {
		if filter.Goals && len(g.forward[k]) != 0 {
			continue
		}
		s, has := g.results[k]
		if filter.Pending && has {
			continue
		}
		if filter.Failed && !(has && s.IsFailed()) {
			continue
		}
		if filter.NotExecuted && !(!has || (has && s.IsPending())) {
			continue
		}
		out = append(out, t)
	}
	sortTasks(out)
	return out
}

// getReadyGraph computes, for the current results, the set of nodes and
// edges still eligible to execute: ok tasks are dropped entirely, and
// non-strict edges downstream of a failed task (or a group whose
// members are all settled) are cut so execution can keep going past
// soft dependencies.
func (g *TaskGraph) getReadyGraph() (nodes map[string]bool, cutEdges map[[2]string]bool) {
	nodes = map[string]bool{}
	for k := range g.nodes {
		if !g.okTasks[k] {
			nodes[k] = true
		}
	}
	cutEdges = map[[2]string]bool{}

	cutIfNonStrict := func(u, v string) {
		e := g.forward[u][v]
		if e != nil && !e.strict {
			cutEdges[[2]string{u, v}] = true
		}
	}

	for failedKey := range g.failedTasks {
		failed := g.nodes[failedKey]
		if failed == nil {
			continue
		}
		for _, out := range g.successors(failed) {
			outKey := key(out)
			if out.Kind() == task.KindGroup {
				settled := true
				for _, m := range out.Members() {
					mk := key(m)
					if !g.failedTasks[mk] && !g.okTasks[mk] {
						settled = false
						break
					}
				}
				if !settled {
					continue
				}
				for _, groupSucc := range g.successors(out) {
					cutIfNonStrict(outKey, key(groupSucc))
				}
			} else {
				cutIfNonStrict(failedKey, outKey)
			}
		}
	}
	return nodes, cutEdges
}

// Ready returns every task currently eligible for execution (no
// remaining pending predecessor). Group tasks are immediately marked
// skipped rather than returned.
func (g *TaskGraph) Ready() []*task.Task {
	nodes, cutEdges := g.getReadyGraph()

	var roots []*task.Task
	for k := range nodes {
		if _, hasResult := g.results[k]; hasResult {
			continue
		}
		inDegree := 0
		for u := range g.reverse[k] {
			if !nodes[u] {
				continue
			}
			if cutEdges[[2]string{u, k}] {
				continue
			}
			inDegree++
		}
		if inDegree == 0 {
			roots = append(roots, g.nodes[k])
		}
	}
	sortTasks(roots)
	if len(roots) == 0 {
		return nil
	}

	var result []*task.Task
	var groups []*task.Task
	for _, t := range roots {
		if t.Kind() == task.KindGroup {
			groups = append(groups, t)
		} else {
			result = append(result, t)
		}
	}
	for _, grp := range groups {
		g.SetStatus(grp, status.Skip(""), false)
	}
	if len(result) == 0 {
		return g.Ready()
	}
	return result
}

// MarkTasksAsSkipped tags recursiveTasks (and, transitively, the
// dependencies of recursiveTasks not also required by some not-skipped
// task) with a "skip" tag. tasks count as skipped when deciding what is
// still required, but are not tagged themselves.
func (g *TaskGraph) MarkTasksAsSkipped(tasks, recursiveTasks []*task.Task, setStatus bool, reason, origin string, reset bool) {
	getSkipTag := func(t *task.Task) (task.Tag, bool) {
		for _, tag := range t.GetTags("skip") {
			if tag.Origin == origin {
				return tag, true
			}
		}
		return task.Tag{}, false
	}

	red := map[*task.Task]bool{}
	for _, t := range tasks {
		red[t] = true
	}
	for _, t := range recursiveTasks {
		red[t] = true
	}

	for _, t := range g.Tasks(TaskFilter{}) {
		if tag, ok := getSkipTag(t); ok {
			if reset {
				t.RemoveTag(tag)
			} else {
				red[t] = true
			}
		}
	}

	iterPredecessors := func(seeds []*task.Task, blackout map[*task.Task]bool) []*task.Task {
		var out []*task.Task
		stack := append([]*task.Task{}, seeds...)
		for len(stack) > 0 {
			t := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if blackout[t] {
				continue
			}
			out = append(out, t)
			stack = append(stack, g.GetPredecessors(t, false)...)
		}
		return out
	}

	blue := map[*task.Task]bool{}
	for _, t := range iterPredecessors(recursiveTasks, map[*task.Task]bool{}) {
		blue[t] = true
	}

	for _, t := range iterPredecessors(g.Tasks(TaskFilter{Goals: true}), red) {
		delete(blue, t)
	}

	for t := range blue {
		t.AddTag("skip", reason, origin)
		if setStatus {
			if _, has := g.GetStatus(t); !has {
				g.SetStatus(t, status.Skip(reason), false)
			}
		}
	}
}

// ExecutionOrder returns every task in the order it must be executed.
// With all, every task in the graph is ordered; otherwise only the
// still-pending, not-cut-off subgraph is.
func (g *TaskGraph) ExecutionOrder(all bool) ([]*task.Task, error) {
	var nodes map[string]bool
	var cutEdges map[[2]string]bool
	if all {
		nodes = map[string]bool{}
		for k := range g.nodes {
			nodes[k] = true
		}
		cutEdges = map[[2]string]bool{}
	} else {
		nodes, cutEdges = g.getReadyGraph()
	}

	inDegree := map[string]int{}
	for k := range nodes {
		inDegree[k] = 0
	}
	for k := range nodes {
		for u := range g.reverse[k] {
			if nodes[u] && !cutEdges[[2]string{u, k}] {
				inDegree[k]++
			}
		}
	}

	var queue []string
	for k := range nodes {
		if inDegree[k] == 0 {
			queue = append(queue, k)
		}
	}
	sort.Strings(queue)

	var order []*task.Task
	processed := 0
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		order = append(order, g.nodes[k])
		processed++
		var unlocked []string
		for v := range g.forward[k] {
			if !nodes[v] || cutEdges[[2]string{k, v}] {
				continue
			}
			inDegree[v]--
			if inDegree[v] == 0 {
				unlocked = append(unlocked, v)
			}
		}
		sort.Strings(unlocked)
		queue = append(queue, unlocked...)
	}

	if processed != len(nodes) {
		return nil, kerrors.NewGraphError("task graph contains a cycle")
	}
	return order, nil
}

// Resume resets the status of background tasks required by any pending
// task, so they are restarted in a secondary execution.
func (g *TaskGraph) Resume() {
	for _, t := range g.Tasks(TaskFilter{Pending: true}) {
		for _, pred := range g.GetPredecessors(t, true) {
			pk := key(pred)
			if g.backgroundTasks[pk] {
				delete(g.backgroundTasks, pk)
				delete(g.okTasks, pk)
				delete(g.failedTasks, pk)
				delete(g.results, pk)
			}
		}
	}
}

// Restart discards the results of every task in the graph.
func (g *TaskGraph) Restart() {
	g.results = map[string]status.Status{}
	g.okTasks = map[string]bool{}
	g.failedTasks = map[string]bool{}
	g.backgroundTasks = map[string]bool{}
}
