// Package context implements Kraken's build context: the
// top-level object that owns the project tree, loads build scripts,
// resolves task addresses, and drives graph construction and execution.
//
// Ground truth: kraken.core.system.context.Context.
package context

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/krakenbuild/kraken/internal/address"
	"github.com/krakenbuild/kraken/internal/kraken/executor"
	"github.com/krakenbuild/kraken/internal/kraken/graph"
	"github.com/krakenbuild/kraken/internal/kraken/project"
	"github.com/krakenbuild/kraken/internal/kraken/task"
	kerrors "github.com/krakenbuild/kraken/pkg/errors"
)

// Scope is the value passed to a ScriptRunner when it executes a build
// script, giving it access to the project it is populating.
type Scope struct {
	Project *project.Project
}

// ScriptRunner finds and executes a build script for a directory. Core
// does not prescribe a scripting language, as documented; concrete
// runners are supplied by callers (cmd/kraken ships a minimal
// programmatic one for its own examples).
type ScriptRunner interface {
	FindScript(dir string) (string, bool)
	ExecuteScript(path string, scope *Scope) error
}

// ProjectFinder locates the build script governing a directory and the
// runner that can execute it, or reports that none exists.
type ProjectFinder interface {
	FindProject(directory string) (scriptPath string, runner ScriptRunner, ok bool)
}

// ContextEventType discriminates the lifecycle events a Context fires
// while loading projects and finalizing the build.
type ContextEventType int

const (
	// EventAny is not a real event; listening on it receives every event,
	// and triggering it directly is a programmer error.
	EventAny ContextEventType = iota
	OnProjectInit
	OnProjectLoaded
	OnProjectBeginFinalize
	OnProjectFinalized
	OnContextBeginFinalize
	OnContextFinalized
)

// ContextEvent is the payload delivered to listeners: Data is a
// *project.Project for the project-level events and nil for
// OnContextBeginFinalize and OnContextFinalized.
type ContextEvent struct {
	Type ContextEventType
	Data any
}

// spaceNode unifies *project.Project and *task.Task into the single
// comparable entity type address.Space needs. The reference
// implementation's KrakenAddressSpace operates over a Project|Task union
// directly; Go generics require one concrete type, so this wraps both.
type spaceNode struct {
	proj *project.Project
	tsk  *task.Task
}

func (n spaceNode) Address() address.Address {
	if n.tsk != nil {
		return n.tsk.Address()
	}
	return n.proj.Address()
}

// addressSpace implements address.Space[spaceNode] over the project/task
// tree rooted at root, mirroring KrakenAddressSpace.
type addressSpace struct {
	root *project.Project
}

func (s *addressSpace) Root() spaceNode { return spaceNode{proj: s.root} }

func (s *addressSpace) Parent(e spaceNode) (spaceNode, bool) {
	if e.tsk != nil {
		if p, ok := e.tsk.Project().(*project.Project); ok {
			return spaceNode{proj: p}, true
		}
		return spaceNode{}, false
	}
	if e.proj.Parent() == nil {
		return spaceNode{}, false
	}
	return spaceNode{proj: e.proj.Parent()}, true
}

func (s *addressSpace) Children(e spaceNode) []spaceNode {
	if e.tsk != nil {
		return nil
	}
	var out []spaceNode
	for _, sp := range e.proj.Subprojects() {
		out = append(out, spaceNode{proj: sp})
	}
	for _, t := range e.proj.Tasks() {
		out = append(out, spaceNode{tsk: t})
	}
	return out
}

// Context owns the project tree, drives graph construction, and executes
// builds.
type Context struct {
	buildDirectory string
	projectFinder  ProjectFinder
	executor       *executor.GraphExecutor
	observer       executor.Observer
	logger         *log.Logger

	focusProject *project.Project
	rootProject  *project.Project
	finalized    bool

	listeners map[ContextEventType][]func(ContextEvent)
}

// New creates a Context rooted at an as-yet-unloaded project tree.
// exec/observer default to a single-task-at-a-time DefaultTaskExecutor
// and a plain-text DefaultPrintingExecutorObserver if nil, matching the
// reference implementation's constructor defaults.
func New(buildDirectory string, finder ProjectFinder, exec *executor.GraphExecutor, observer executor.Observer, logger *log.Logger) *Context {
	if exec == nil {
		exec = executor.New(executor.DefaultTaskExecutor{}, 1)
	}
	if observer == nil {
		observer = executor.NewDefaultObserver(nil)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Context{
		buildDirectory: buildDirectory,
		projectFinder:  finder,
		executor:       exec,
		observer:       observer,
		logger:         logger,
		listeners:      map[ContextEventType][]func(ContextEvent){},
	}
}

// BuildDirectory implements project.ContextRef.
func (c *Context) BuildDirectory() string { return c.buildDirectory }

// RootProject returns the first project ever loaded into this context.
func (c *Context) RootProject() *project.Project { return c.rootProject }

// FocusProject is the project a CLI invocation is anchored to (the
// project directory it was run from, typically), used as the default
// ResolveTasks anchor by callers such as cmd/kraken.
func (c *Context) FocusProject() *project.Project { return c.focusProject }

// SetFocusProject sets FocusProject.
func (c *Context) SetFocusProject(p *project.Project) { c.focusProject = p }

// SetObserver replaces the Observer used by Execute, letting callers
// (cmd/kraken) swap in an Observer built from information only available
// after the project tree has loaded, such as resolved exclusion lists.
func (c *Context) SetObserver(observer executor.Observer) {
	if observer == nil {
		return
	}
	c.observer = observer
}

// LoadProject implements project.ContextRef: it loads (or reloads, for
// the first call) a project rooted at directory, running its build
// script if one is found. On script failure the partial registration
// (root assignment, parent linkage) is reverted before the error
// propagates, exactly as the reference Context.load_project does.
func (c *Context) LoadProject(directory string, parent *project.Project, requireBuildScript bool) (*project.Project, error) {
	var scriptPath string
	var runner ScriptRunner
	var found bool
	if c.projectFinder != nil {
		scriptPath, runner, found = c.projectFinder.FindProject(directory)
	}

	hadRoot := c.rootProject != nil
	name := filepath.Base(directory)
	proj := project.New(name, directory, parent, c)

	if parent != nil {
		if err := parent.AddChild(proj); err != nil {
			return nil, err
		}
	}
	c.trigger(OnProjectInit, proj)

	if !hadRoot {
		c.rootProject = proj
	}

	var loadErr error
	switch {
	case !found:
		if requireBuildScript {
			loadErr = kerrors.NewProjectLoaderError(proj.Address().String(), "no build script found in "+directory, nil)
		}
	case runner != nil:
		if err := runner.ExecuteScript(scriptPath, &Scope{Project: proj}); err != nil {
			loadErr = kerrors.NewProjectLoaderError(proj.Address().String(), err.Error(), err)
		}
	}

	if loadErr != nil {
		if !hadRoot {
			c.rootProject = nil
		}
		if parent != nil {
			parent.RemoveChild(proj)
		}
		return nil, loadErr
	}

	c.trigger(OnProjectLoaded, proj)
	return proj, nil
}

// IterProjects yields relativeTo (or the root project, if nil) followed
// by every subproject, recursively.
func (c *Context) IterProjects(relativeTo *project.Project) []*project.Project {
	root := relativeTo
	if root == nil {
		root = c.rootProject
	}
	if root == nil {
		return nil
	}
	var out []*project.Project
	var walk func(p *project.Project)
	walk = func(p *project.Project) {
		out = append(out, p)
		for _, sp := range p.Subprojects() {
			walk(sp)
		}
	}
	walk(root)
	return out
}

// GetProject resolves an absolute project address by walking already
// loaded subprojects; it never touches the filesystem.
func (c *Context) GetProject(addr address.Address) (*project.Project, error) {
	if !addr.IsAbsolute() {
		return nil, fmt.Errorf("project address must be absolute: %s", addr)
	}
	cur := c.rootProject
	if cur == nil {
		return nil, kerrors.NewProjectNotFoundError(addr.String())
	}
	for _, el := range addr.Elements() {
		next, err := cur.Subproject(el.Value, project.ModeOrNone)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, kerrors.NewProjectNotFoundError(addr.String())
		}
		cur = next
	}
	return cur, nil
}

func (c *Context) allTasks() []*task.Task {
	var out []*task.Task
	for _, p := range c.IterProjects(nil) {
		for _, t := range p.Tasks() {
			out = append(out, t)
		}
	}
	return out
}

// resolveTask looks up a task by its absolute address, used as the
// task.Resolver passed to graph.New.
func (c *Context) resolveTask(addr address.Address) (*task.Task, error) {
	if addr.Len() == 0 {
		return nil, fmt.Errorf("invalid task address: %s", addr)
	}
	name, err := addr.Name()
	if err != nil {
		return nil, err
	}
	parentAddr, err := addr.Parent()
	if err != nil {
		return nil, err
	}
	proj, err := c.GetProject(parentAddr)
	if err != nil {
		return nil, err
	}
	return proj.Task(name)
}

// ResolveTasks resolves every address in addresses (nil defaults to
// [".:", "**:"], the focus project's and every sub-project's default
// tasks) relative to relativeTo.
//
// relativeTo defaults to address.Root, not the focus project: this
// follows the reference implementation's resolve_tasks literally rather
// than a looser reading (see DESIGN.md's Open Question decisions).
// Callers that want "relative to the focus project" — the CLI's usual
// behavior — must pass c.FocusProject().Address() explicitly.
func (c *Context) ResolveTasks(addresses []string, relativeTo address.Address, setSelected bool) ([]*task.Task, error) {
	if relativeTo.IsEmpty() {
		relativeTo = address.Root
	}
	if !relativeTo.IsAbsolute() {
		return nil, fmt.Errorf("resolve_tasks relative_to must be absolute: %s", relativeTo)
	}
	if addresses == nil {
		addresses = []string{".:", "**:"}
	}

	space := &addressSpace{root: c.rootProject}
	results := task.NewSet()
	for _, raw := range addresses {
		tasks, err := c.resolveSingleAddress(raw, relativeTo, space, setSelected)
		if err != nil {
			if raw == "**:" {
				continue
			}
			return nil, err
		}
		results.Update(tasks)
	}
	return results.Slice(), nil
}

func (c *Context) resolveSingleAddress(raw string, relativeTo address.Address, space *addressSpace, setSelected bool) ([]*task.Task, error) {
	addr, err := address.Parse(raw)
	if err != nil {
		return nil, err
	}
	if addr.IsEmpty() {
		return nil, fmt.Errorf("empty task address")
	}

	if !addr.IsAbsolute() && !addr.IsContainer() && addr.Len() == 1 && !addr.At(0).IsRecursiveWildcard() {
		addr = address.RecursiveWildcard.Concat(addr)
	}
	if !addr.IsAbsolute() {
		addr = relativeTo.Concat(addr).Normalize(true)
	}

	result, err := address.Resolve(space, space.Root(), addr)
	if err != nil {
		return nil, err
	}

	var tasks []*task.Task
	for _, m := range result.Matches() {
		switch {
		case m.tsk != nil:
			tasks = append(tasks, m.tsk)
		case m.proj != nil:
			for _, t := range m.proj.Tasks() {
				if t.Default() {
					tasks = append(tasks, t)
				}
			}
		}
	}

	if setSelected {
		for _, t := range tasks {
			t.SetSelected(true)
		}
	}

	if len(tasks) == 0 {
		return nil, kerrors.NewTaskResolutionError(raw)
	}
	return tasks, nil
}

// Finalize locks every task's non-output properties against further
// mutation. Idempotent: a second call logs a warning and returns, rather
// than erroring, matching the reference implementation.
func (c *Context) Finalize() {
	if c.finalized {
		c.logger.Warn("context is already finalized")
		return
	}
	c.finalized = true
	c.trigger(OnContextBeginFinalize, nil)
	for _, p := range c.IterProjects(nil) {
		c.trigger(OnProjectBeginFinalize, p)
		for _, t := range p.Tasks() {
			t.Finalize()
		}
		c.trigger(OnProjectFinalized, p)
	}
	c.trigger(OnContextFinalized, nil)
}

// GetBuildGraph resolves targets (nil selects ResolveTasks' default) and
// returns the TaskGraph trimmed to exactly those tasks and their strict
// dependencies.
func (c *Context) GetBuildGraph(targets []string) (*graph.TaskGraph, error) {
	relativeTo := address.Root
	if c.focusProject != nil {
		relativeTo = c.focusProject.Address()
	}
	tasks, err := c.ResolveTasks(targets, relativeTo, false)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks selected")
	}

	g := graph.New(c.resolveTask, c.allTasks)
	if err := g.Populate(tasks); err != nil {
		return nil, err
	}
	trimmed, err := g.Trim(tasks)
	if err != nil {
		return nil, err
	}
	if trimmed.IsEmpty() {
		return nil, fmt.Errorf("trimmed build graph is empty")
	}
	return trimmed, nil
}

// Execute finalizes the context if needed, builds the graph for tasks,
// runs it through the configured executor, and returns a *BuildError
// naming every failed task if the graph did not complete successfully.
func (c *Context) Execute(tasks []string) error {
	if !c.finalized {
		c.Finalize()
	}
	g, err := c.GetBuildGraph(tasks)
	if err != nil {
		return err
	}
	c.executor.Execute(g, c.observer)
	if !g.IsComplete() {
		var failed []string
		for _, t := range g.Tasks(graph.TaskFilter{Failed: true}) {
			failed = append(failed, t.Address().String())
		}
		return kerrors.NewBuildError(failed)
	}
	return nil
}

// Listen registers listener for eventType; listeners registered under
// EventAny fire for every event in addition to their own type's
// listeners, in registration order.
func (c *Context) Listen(eventType ContextEventType, listener func(ContextEvent)) {
	c.listeners[eventType] = append(c.listeners[eventType], listener)
}

// trigger fires eventType with data to every registered listener.
// Triggering EventAny directly is a programmer error: it is a listener
// selector, not a real event.
func (c *Context) trigger(eventType ContextEventType, data any) {
	if eventType == EventAny {
		panic("context: cannot trigger the wildcard event type directly")
	}
	for _, l := range c.listeners[EventAny] {
		l(ContextEvent{Type: eventType, Data: data})
	}
	for _, l := range c.listeners[eventType] {
		l(ContextEvent{Type: eventType, Data: data})
	}
}
