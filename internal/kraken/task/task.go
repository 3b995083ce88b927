// Package task implements Kraken's unit of work: an
// addressable node carrying typed properties, declared relationships and
// lifecycle hooks, composed into the build graph.
//
// The reference implementation expresses Task/GroupTask/VoidTask/
// BackgroundTask through class inheritance. Re-expressed here as a
// tagged sum, Task is a single struct with a Kind discriminator;
// kind-specific behavior (a group's forced Skip, a void task's
// skip/message properties) is implemented once in this file rather than
// through a type hierarchy.
package task

import (
	"fmt"
	"regexp"

	"github.com/krakenbuild/kraken/internal/address"
	"github.com/krakenbuild/kraken/internal/kraken/property"
	"github.com/krakenbuild/kraken/internal/kraken/status"
	"github.com/krakenbuild/kraken/internal/kraken/supplier"
)

// Kind discriminates the four task variants the documented contract describes.
type Kind int

const (
	KindPlain Kind = iota
	KindGroup
	KindVoid
	KindBackground
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindVoid:
		return "void"
	case KindBackground:
		return "background"
	default:
		return "plain"
	}
}

// ProjectRef is the minimal capability Task needs from its owning project:
// just enough to be addressable. Declared here (rather than imported from
// the project package) to avoid a project<->task import cycle, since
// Project holds Tasks as members.
type ProjectRef interface {
	Address() address.Address
}

// Behavior supplies the Prepare/Execute/Teardown lifecycle hooks for a
// task. Concrete task libraries implement this once per task "type"; the
// Task struct itself holds no opinion on what the hooks do beyond the
// kind-specific overrides (group tasks are never executed, void tasks
// default to skipping).
type Behavior interface {
	Prepare(t *Task) (status.Status, error)
	Execute(t *Task) (status.Status, error)
	Teardown(t *Task) (status.Status, error)
}

// PropertyNode is the subset of property.Property[T] that Task needs
// without committing to a single element type: enough to finalize it, walk
// its lineage, and render it in a description template.
type PropertyNode interface {
	supplier.Node
	Finalize()
	IsOutput() bool
	OwnerAddress() address.Address
	Name() string
	StringValue() string
}

// Owned is implemented by anything identifying the task or project that
// owns it — every PropertyNode qualifies. GetRelationships type-asserts
// lineage nodes against this to find property-inferred edges.
type Owned interface {
	OwnerAddress() address.Address
}

// Tag is a (name, reason, origin) triple attached to a task. The
// well-known name "skip" instructs the executor to bypass the task.
type Tag struct {
	Name   string
	Reason string
	Origin string
}

// Relationship is a declared dependency edge, possibly unresolved (an
// address rather than a concrete Task) until graph population time.
type Relationship struct {
	Target        *Task
	TargetAddress address.Address
	Strict        bool
	Inverse       bool
}

// Edge is a resolved dependency between two tasks. From is the dependent
// (downstream) task; To is the dependency (upstream) task that From's edge
// requires, per Strict/Inverse semantics.
type Edge struct {
	From    *Task
	To      *Task
	Strict  bool
	Inverse bool
}

// Resolver looks up the concrete task at addr, used to resolve both
// property-inferred edges and declared address-based relationships lazily
// at graph-population time (the documented "lazy address references").
type Resolver func(addr address.Address) (*Task, error)

// Task is a unit of work in the build graph.
type Task struct {
	addr        address.Address
	project     ProjectRef
	name        string
	kind        Kind
	description string
	defaultFlag bool
	selected    bool

	relationships []Relationship
	tags          map[string][]Tag
	properties    []PropertyNode
	members       []*Task

	skipProp    *property.Property[bool]
	messageProp *property.Property[string]

	impl      Behavior
	finalized bool
}

func newBase(addr address.Address, project ProjectRef, name string, kind Kind) *Task {
	return &Task{addr: addr, project: project, name: name, kind: kind, tags: map[string][]Tag{}}
}

// NewPlainTask creates an ordinary task whose lifecycle is driven entirely
// by impl.
func NewPlainTask(addr address.Address, project ProjectRef, name string, impl Behavior) *Task {
	t := newBase(addr, project, name, KindPlain)
	t.impl = impl
	return t
}

// NewGroupTask creates a task that exists only to aggregate its Members:
// Prepare always returns Skipped and Execute is forbidden.
func NewGroupTask(addr address.Address, project ProjectRef, name string) *Task {
	return newBase(addr, project, name, KindGroup)
}

// NewVoidTask creates a placeholder task with a "skip" property (defaults
// true) and a "message" property.
func NewVoidTask(addr address.Address, project ProjectRef, name string) *Task {
	t := newBase(addr, project, name, KindVoid)
	skip := Declare[bool](t, "skip", false)
	skip.SetDefault(true)
	message := Declare[string](t, "message", false)
	t.skipProp = skip
	t.messageProp = message
	t.impl = voidBehavior{}
	return t
}

// NewBackgroundTask creates a task whose Execute is expected to return a
// Started status; the executor remembers it and tears it down once its
// dependants have all reached a terminal status.
func NewBackgroundTask(addr address.Address, project ProjectRef, name string, impl Behavior) *Task {
	t := newBase(addr, project, name, KindBackground)
	t.impl = impl
	return t
}

// Declare registers a new property of type T on the task and returns it.
// This is the imperative stand-in for the reference implementation's
// reflective property-schema introspection: task constructors and
// Behavior implementations call it directly instead of relying on
// type-annotation reflection, which Go cannot express as naturally. A
// generic method cannot be expressed on *Task in Go, hence this free
// function.
func Declare[T any](t *Task, name string, isOutput bool) *property.Property[T] {
	p := property.New[T](t.addr, name, isOutput)
	t.properties = append(t.properties, p)
	return p
}

func (t *Task) Address() address.Address { return t.addr }
func (t *Task) Project() ProjectRef       { return t.project }
func (t *Task) Name() string              { return t.name }
func (t *Task) Kind() Kind                { return t.kind }
func (t *Task) Default() bool             { return t.defaultFlag }
func (t *Task) SetDefault(v bool)         { t.defaultFlag = v }
func (t *Task) Selected() bool            { return t.selected }
func (t *Task) SetSelected(v bool)        { t.selected = v }
func (t *Task) Properties() []PropertyNode { return t.properties }
func (t *Task) Members() []*Task           { return t.members }

// AddMember adds a task to a group task's membership list.
func (t *Task) AddMember(member *Task) { t.members = append(t.members, member) }

// SetDescription sets the description template interpolated by
// Description(). Properties are referenced as "%name".
func (t *Task) SetDescription(template string) { t.description = template }

var descriptionPlaceholder = regexp.MustCompile(`%(\w+)`)

// Description interpolates the description template with property values.
func (t *Task) Description() string {
	if t.description == "" {
		return ""
	}
	return descriptionPlaceholder.ReplaceAllStringFunc(t.description, func(m string) string {
		name := m[1:]
		for _, p := range t.properties {
			if p.Name() == name {
				return p.StringValue()
			}
		}
		return m
	})
}

// AddTag attaches a tag to the task and returns it so it can later be
// removed by identity.
func (t *Task) AddTag(name, reason, origin string) Tag {
	tag := Tag{Name: name, Reason: reason, Origin: origin}
	t.tags[name] = append(t.tags[name], tag)
	return tag
}

// GetTags returns every tag attached under name.
func (t *Task) GetTags(name string) []Tag { return t.tags[name] }

// RemoveTag removes a previously added tag.
func (t *Task) RemoveTag(tag Tag) {
	bucket := t.tags[tag.Name]
	for i, x := range bucket {
		if x == tag {
			t.tags[tag.Name] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// IsSkipped reports whether the task carries any "skip" tag.
func (t *Task) IsSkipped() bool { return len(t.tags["skip"]) > 0 }

// DependsOn declares that t requires target (strict) or merely orders
// before it (order-only, strict=false).
func (t *Task) DependsOn(target *Task, strict bool) {
	t.relationships = append(t.relationships, Relationship{Target: target, Strict: strict})
}

// DependsOnAddress is like DependsOn but the target is resolved lazily at
// graph-population time.
func (t *Task) DependsOnAddress(addr address.Address, strict bool) {
	t.relationships = append(t.relationships, Relationship{TargetAddress: addr, Strict: strict})
}

// RequiredBy declares that target depends on t.
func (t *Task) RequiredBy(target *Task, strict bool) {
	t.relationships = append(t.relationships, Relationship{Target: target, Strict: strict, Inverse: true})
}

// RequiredByAddress is like RequiredBy but the target is resolved lazily.
func (t *Task) RequiredByAddress(addr address.Address, strict bool) {
	t.relationships = append(t.relationships, Relationship{TargetAddress: addr, Strict: strict, Inverse: true})
}

// AddRelationship is the primitive both DependsOn* and RequiredBy* are
// built on, preserved directly per the documented note that the
// (strict, inverse) tuple must survive even though only the modern
// DependsOn/RequiredBy API is core.
func (t *Task) AddRelationship(rel Relationship) {
	t.relationships = append(t.relationships, rel)
}

// GetRelationships yields every dependency edge for this task: one for
// each property whose lineage crosses into another task's ownership
// (always strict, non-inverse), followed by every declared relationship,
// resolved through resolve.
func (t *Task) GetRelationships(resolve Resolver) ([]Edge, error) {
	var edges []Edge
	seen := map[*Task]bool{}

	// A group task strictly depends on every one of its own members,
	// mirroring GroupTask's own relationship override in the reference
	// implementation; yielded first so callers that special-case
	// membership edges (graph population's implicit-edge synthesis) see
	// them before any other relationship.
	if t.kind == KindGroup {
		for _, m := range t.members {
			edges = append(edges, Edge{From: t, To: m, Strict: true})
		}
	}

	for _, p := range t.properties {
		for _, n := range supplier.Lineage(p) {
			owned, ok := n.(Owned)
			if !ok {
				continue
			}
			ownerAddr := owned.OwnerAddress()
			if ownerAddr.Equal(t.addr) {
				continue
			}
			owner, err := resolve(ownerAddr)
			if err != nil || owner == nil {
				continue
			}
			if seen[owner] {
				continue
			}
			seen[owner] = true
			edges = append(edges, Edge{From: t, To: owner, Strict: true})
		}
	}

	for _, rel := range t.relationships {
		target := rel.Target
		if target == nil {
			resolved, err := resolve(rel.TargetAddress)
			if err != nil {
				if rel.TargetAddress.Len() > 0 && rel.TargetAddress.At(rel.TargetAddress.Len()-1).Fallible {
					continue
				}
				return nil, err
			}
			target = resolved
		}
		from, to := t, target
		if rel.Inverse {
			from, to = target, t
		}
		edges = append(edges, Edge{From: from, To: to, Strict: rel.Strict, Inverse: rel.Inverse})
	}

	return edges, nil
}

// Finalize locks every non-output property against further mutation.
// Idempotent.
func (t *Task) Finalize() {
	if t.finalized {
		return
	}
	for _, p := range t.properties {
		if !p.IsOutput() {
			p.Finalize()
		}
	}
	t.finalized = true
}

// Prepare runs the fast, serial pre-execution hook. Group tasks are always
// skipped.
func (t *Task) Prepare() (status.Status, error) {
	if t.kind == KindGroup {
		return status.Skip(""), nil
	}
	if t.impl != nil {
		return t.impl.Prepare(t)
	}
	return status.Pend(), nil
}

// Execute runs the task's main work. Calling Execute on a group task is a
// programmer error.
func (t *Task) Execute() (status.Status, error) {
	if t.kind == KindGroup {
		return status.Status{}, fmt.Errorf("group task %s must not be executed", t.addr)
	}
	if t.impl != nil {
		return t.impl.Execute(t)
	}
	return status.Succeed(), nil
}

// Teardown releases resources held by a task that previously returned
// Started.
func (t *Task) Teardown() (status.Status, error) {
	if t.impl != nil {
		return t.impl.Teardown(t)
	}
	return status.Succeed(), nil
}

type voidBehavior struct{}

func (voidBehavior) Prepare(t *Task) (status.Status, error) {
	skip, err := t.skipProp.Get()
	if err != nil {
		return status.Pend(), nil
	}
	if skip {
		msg, _ := t.messageProp.Get()
		return status.Skip(msg), nil
	}
	return status.Pend(), nil
}

func (voidBehavior) Execute(t *Task) (status.Status, error) {
	msg, _ := t.messageProp.Get()
	return status.Of(status.Succeeded, msg), nil
}

func (voidBehavior) Teardown(t *Task) (status.Status, error) { return status.Succeed(), nil }

// Set is a thin ordered-unique collection of tasks, ported from the
// reference implementation's TaskSet.
type Set struct {
	order []*Task
	seen  map[*Task]bool
}

func NewSet() *Set { return &Set{seen: map[*Task]bool{}} }

func (s *Set) Add(t *Task) {
	if !s.seen[t] {
		s.seen[t] = true
		s.order = append(s.order, t)
	}
}

func (s *Set) Update(ts []*Task) {
	for _, t := range ts {
		s.Add(t)
	}
}

func (s *Set) Slice() []*Task { return s.order }
