// Package project implements Kraken's filesystem-bound task container: a
// node in the project tree that owns tasks, child projects and a
// metadata bag, and seeds the default group lattice every project starts
// with.
package project

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/krakenbuild/kraken/internal/address"
	"github.com/krakenbuild/kraken/internal/kraken/task"
	kerrors "github.com/krakenbuild/kraken/pkg/errors"
)

// ContextRef is the capability Project needs from its owning Context:
// resolving an on-disk subproject directory into a loaded Project, and
// the root build directory tasks derive their own build directories from.
// Declared here (not imported from the context package) to avoid a
// project<->context import cycle, since Context holds the project tree.
type ContextRef interface {
	LoadProject(directory string, parent *Project, requireBuildScript bool) (*Project, error)
	BuildDirectory() string
}

// member is either a *task.Task or a *Project, kept in insertion order
// alongside the name-keyed map so iteration is deterministic.
type member struct {
	name string
	task *task.Task
	proj *Project
}

// Project consolidates tasks and subprojects related to a directory on
// the filesystem.
type Project struct {
	name      string
	addr      address.Address
	directory string
	parent    *Project
	context   ContextRef
	metadata  []any

	order   []string
	members map[string]member
}

// New creates a project named name under parent (nil for the root
// project), bound to directory, seeding the default group lattice
// (apply/fmt/check/gen/lint/build/audit/test/integrationTest/publish/
// deploy/update) with the exact strict/order-only edges the documented contract
// describes.
func New(name string, directory string, parent *Project, ctx ContextRef) *Project {
	var addr address.Address
	if parent == nil {
		addr = address.Root
	} else {
		a, err := parent.Address().AppendString(name)
		if err != nil {
			panic(err)
		}
		addr = a
	}

	p := &Project{
		name:      name,
		addr:      addr,
		directory: directory,
		parent:    parent,
		context:   ctx,
		members:   map[string]member{},
	}
	p.seedDefaultGroups()
	return p
}

func (p *Project) seedDefaultGroups() {
	applyGroup := p.Group("apply", "Tasks that perform automatic updates to the project consistency.", false)

	fmtGroup := p.Group("fmt", "Tasks that perform code formatting operations.", false)
	fmtGroup.DependsOn(applyGroup, true)

	checkGroup := p.Group("check", "Tasks that perform project consistency checks.", true)

	genGroup := p.Group("gen", "Tasks that perform code generation.", true)

	lintGroup := p.Group("lint", "Tasks that perform code linting.", true)
	lintGroup.DependsOn(checkGroup, true)
	lintGroup.DependsOn(genGroup, true)

	buildGroup := p.Group("build", "Tasks that produce build artefacts.", false)
	buildGroup.DependsOn(lintGroup, false)
	buildGroup.DependsOn(genGroup, true)

	auditGroup := p.Group("audit", "Tasks that perform auditing on built artefacts and code.", false)
	auditGroup.DependsOn(buildGroup, true)
	auditGroup.DependsOn(genGroup, true)

	testGroup := p.Group("test", "Tasks that perform unit tests.", true)
	testGroup.DependsOn(buildGroup, false)
	testGroup.DependsOn(genGroup, true)

	integrationTestGroup := p.Group("integrationTest", "Tasks that perform integration tests.", false)
	integrationTestGroup.DependsOn(testGroup, false)
	integrationTestGroup.DependsOn(genGroup, true)

	publishGroup := p.Group("publish", "Tasks that publish build artefacts.", false)
	publishGroup.DependsOn(integrationTestGroup, false)
	publishGroup.DependsOn(buildGroup, true)

	deployGroup := p.Group("deploy", "Tasks that deploy applications.", false)
	deployGroup.DependsOn(publishGroup, false)

	p.Group("update", "Tasks that update dependencies of the project.", false)

	_ = auditGroup
}

func (p *Project) Address() address.Address { return p.addr }
func (p *Project) Parent() *Project         { return p.parent }
func (p *Project) Directory() string        { return p.directory }
func (p *Project) Context() ContextRef      { return p.context }

// Name returns the project's display name. Root projects have no address
// name component, so the last path segment of the directory is used
// instead, matching the reference implementation's documented fallback.
func (p *Project) Name() string {
	if p.addr.IsRoot() {
		return path.Base(p.directory)
	}
	return p.name
}

// BuildDirectory returns the recommended build directory for the
// project: the context build directory amended by the project address.
func (p *Project) BuildDirectory() string {
	rel := strings.TrimPrefix(p.addr.String(), ":")
	rel = strings.ReplaceAll(rel, ":", "/")
	return path.Join(p.context.BuildDirectory(), rel)
}

// AddMetadata appends an arbitrary object to the project's metadata bag,
// usually looked up later by type.
func (p *Project) AddMetadata(v any) { p.metadata = append(p.metadata, v) }

// Metadata returns every object in the project's metadata bag.
func (p *Project) Metadata() []any { return p.metadata }

// MetadataOfType returns the first metadata entry assignable to T.
func MetadataOfType[T any](p *Project) (T, bool) {
	for _, m := range p.metadata {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Task retrieves an existing task by name.
func (p *Project) Task(name string) (*task.Task, error) {
	m, ok := p.members[name]
	if !ok || m.task == nil {
		addr, _ := p.addr.AppendString(name)
		return nil, kerrors.NewTaskResolutionError(addr.String())
	}
	return m.task, nil
}

// NewTask creates and registers a task in this project under name, using
// impl as its behavior. Raises a DuplicateMemberError if a member with
// that name already exists. group, when non-nil, is a group task (such as
// one returned by Group) the new task is added to; nil skips grouping.
func (p *Project) NewTask(name string, impl task.Behavior, description string, defaultFlag *bool, group *task.Task) (*task.Task, error) {
	if _, exists := p.members[name]; exists {
		return nil, kerrors.NewDuplicateMemberError(p.addr.String(), name)
	}
	addr, err := p.addr.AppendString(name)
	if err != nil {
		return nil, err
	}
	t := task.NewPlainTask(addr, p, name, impl)
	if defaultFlag != nil {
		t.SetDefault(*defaultFlag)
	}
	if description != "" {
		t.SetDescription(description)
	}
	p.registerMember(name, member{name: name, task: t})
	if group != nil {
		group.AddMember(t)
	}
	return t, nil
}

// NewVoidTask creates and registers a void (placeholder) task.
func (p *Project) NewVoidTask(name string) (*task.Task, error) {
	if _, exists := p.members[name]; exists {
		return nil, kerrors.NewDuplicateMemberError(p.addr.String(), name)
	}
	addr, err := p.addr.AppendString(name)
	if err != nil {
		return nil, err
	}
	t := task.NewVoidTask(addr, p, name)
	p.registerMember(name, member{name: name, task: t})
	return t, nil
}

func (p *Project) registerMember(name string, m member) {
	p.members[name] = m
	p.order = append(p.order, name)
}

// Tasks returns every task member, keyed by name.
func (p *Project) Tasks() map[string]*task.Task {
	out := map[string]*task.Task{}
	for _, name := range p.order {
		if m := p.members[name]; m.task != nil {
			out[name] = m.task
		}
	}
	return out
}

// Subprojects returns every project member, keyed by name.
func (p *Project) Subprojects() map[string]*Project {
	out := map[string]*Project{}
	for _, name := range p.order {
		if m := p.members[name]; m.proj != nil {
			out[name] = m.proj
		}
	}
	return out
}

// HasSubproject reports whether name refers to a subproject of p.
func (p *Project) HasSubproject(name string) bool {
	m, ok := p.members[name]
	return ok && m.proj != nil
}

// SubprojectMode selects how Subproject mounts a child project.
type SubprojectMode int

const (
	// ModeExecute loads and executes the subproject's build scripts,
	// erroring if the directory does not exist.
	ModeExecute SubprojectMode = iota
	// ModeEmpty creates the subproject without loading any build
	// scripts.
	ModeEmpty
	// ModeIfExists behaves like ModeExecute but returns (nil, nil)
	// instead of erroring when the directory is absent.
	ModeIfExists
	// ModeOrNone returns the subproject only if it was already loaded;
	// it never touches the filesystem.
	ModeOrNone
)

// Subproject mounts a sub-project of this project with the given name,
// per mode.
func (p *Project) Subproject(name string, mode SubprojectMode) (*Project, error) {
	m, exists := p.members[name]
	if !exists && mode == ModeOrNone {
		return nil, nil
	}
	if exists {
		if m.proj == nil {
			return nil, fmt.Errorf("%s:%s does not refer to a project", p.addr, name)
		}
		return m.proj, nil
	}

	childDir := path.Join(p.directory, name)
	switch mode {
	case ModeEmpty:
		child := New(name, childDir, p, p.context)
		p.registerMember(name, member{name: name, proj: child})
		return child, nil
	case ModeExecute, ModeIfExists:
		if info, err := os.Stat(childDir); err != nil || !info.IsDir() {
			if mode == ModeIfExists {
				return nil, nil
			}
			return nil, fmt.Errorf("subproject directory %s does not exist", childDir)
		}
		child, err := p.context.LoadProject(childDir, p, false)
		if err != nil {
			return nil, err
		}
		return child, nil
	default:
		return nil, fmt.Errorf("invalid subproject mode %v", mode)
	}
}

// AddTask registers an externally constructed task as a member of this
// project.
func (p *Project) AddTask(t *task.Task) error {
	if _, exists := p.members[t.Name()]; exists {
		return kerrors.NewDuplicateMemberError(p.addr.String(), t.Name())
	}
	if owner, ok := t.Project().(*Project); ok && owner != p {
		return fmt.Errorf("%s.project mismatch", t.Address())
	}
	p.registerMember(t.Name(), member{name: t.Name(), task: t})
	return nil
}

// AddChild registers an externally constructed project as a child of
// this project.
func (p *Project) AddChild(child *Project) error {
	if _, exists := p.members[child.Name()]; exists {
		return kerrors.NewDuplicateMemberError(p.addr.String(), child.Name())
	}
	if child.parent != p {
		return fmt.Errorf("%s.parent mismatch", child.addr)
	}
	p.registerMember(child.Name(), member{name: child.Name(), proj: child})
	return nil
}

// RemoveChild detaches a previously added child project.
func (p *Project) RemoveChild(child *Project) {
	delete(p.members, child.Name())
	for i, name := range p.order {
		if name == child.Name() {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// Group creates or fetches a group task of the given name, setting its
// description and default flag if provided. If a member with the name
// exists that is not a group task, this panics: callers only pass names
// under their own control (internal group lattice, build scripts), never
// untrusted task names.
func (p *Project) Group(name string, description string, defaultFlag bool) *task.Task {
	if m, ok := p.members[name]; ok {
		if m.task == nil || m.task.Kind() != task.KindGroup {
			panic(fmt.Sprintf("%s:%s must be a group task", p.addr, name))
		}
		if description != "" {
			m.task.SetDescription(description)
		}
		m.task.SetDefault(defaultFlag)
		return m.task
	}
	addr, err := p.addr.AppendString(name)
	if err != nil {
		panic(err)
	}
	g := task.NewGroupTask(addr, p, name)
	if description != "" {
		g.SetDescription(description)
	}
	g.SetDefault(defaultFlag)
	p.registerMember(name, member{name: name, task: g})
	return g
}
