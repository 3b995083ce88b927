// Package property implements Kraken's typed, owner-bound, lazily-evaluated
// task and project configuration values, backed by the
// supplier package for laziness and lineage.
//
// The reference implementation (kraken.core.system.property) gives each
// property a declared set of accepted concrete types and checks values
// against it at run time, because Python properties are not statically
// typed. Go's generics make that reflection-heavy machinery unnecessary:
// Property[T] is checked by the compiler, so provides()/get_of_type() have
// no Go equivalent here — this is a deliberate simplification, not an
// oversight.
package property

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/krakenbuild/kraken/internal/address"
	"github.com/krakenbuild/kraken/internal/kraken/supplier"
	kerrors "github.com/krakenbuild/kraken/pkg/errors"
)

// Property is a typed, lazily-evaluated configuration value owned by a task
// or project, identified by name. IsOutput distinguishes properties a task
// writes (inputs to downstream tasks) from ones it reads.
type Property[T any] struct {
	owner     address.Address
	name      string
	isOutput  bool
	current   supplier.Supplier[T]
	extra     []supplier.Node
	finalized bool
	errMsg    string
}

// New creates a property in its empty (Void) state.
func New[T any](owner address.Address, name string, isOutput bool) *Property[T] {
	return &Property[T]{owner: owner, name: name, isOutput: isOutput, current: supplier.Void[T]()}
}

// OwnerAddress returns the address of the task or project that owns this
// property. Task.GetRelationships uses this (via the Owned interface) to
// turn property lineage into dependency edges.
func (p *Property[T]) OwnerAddress() address.Address { return p.owner }

// Name returns the property's name within its owner.
func (p *Property[T]) Name() string { return p.name }

// IsOutput reports whether this is an output property.
func (p *Property[T]) IsOutput() bool { return p.isOutput }

// Finalized reports whether the property has been finalized.
func (p *Property[T]) Finalized() bool { return p.finalized }

// DerivedFrom implements supplier.Node: a property's lineage is its current
// supplier plus any explicitly attached extra lineage.
func (p *Property[T]) DerivedFrom() []supplier.Node {
	out := make([]supplier.Node, 0, len(p.extra)+1)
	out = append(out, p.current)
	out = append(out, p.extra...)
	return out
}

func (p *Property[T]) ensureMutable() error {
	if p.finalized {
		return kerrors.NewPropertyFinalizedError(p.owner.String(), p.name)
	}
	return nil
}

// Set assigns a raw value, with optional additional lineage suppliers
// beyond the value itself (used when the value was computed from other
// properties without going through SetCallable/SetMap).
func (p *Property[T]) Set(value T, derivedFrom ...supplier.Node) error {
	if err := p.ensureMutable(); err != nil {
		return err
	}
	p.current = supplier.Of(value, derivedFrom...)
	return nil
}

// SetSupplier assigns a supplier directly, without passing it through a
// value adapter (suppliers are trusted to already produce a T).
func (p *Property[T]) SetSupplier(s supplier.Supplier[T]) error {
	if err := p.ensureMutable(); err != nil {
		return err
	}
	p.current = s
	return nil
}

// SetCallable assigns a value computed on demand.
func (p *Property[T]) SetCallable(fn func() (T, error), derivedFrom ...supplier.Node) error {
	if err := p.ensureMutable(); err != nil {
		return err
	}
	p.current = supplier.OfCallable(fn, derivedFrom...)
	return nil
}

// SetMap replaces the current value with one derived from it.
func (p *Property[T]) SetMap(fn func(T) (T, error)) error {
	if err := p.ensureMutable(); err != nil {
		return err
	}
	p.current = supplier.Map(p.current, fn)
	return nil
}

// SetDefault seeds a value only if the property is still empty and not yet
// finalized; used by task constructors to pre-populate defaults without
// overriding anything the caller already configured.
func (p *Property[T]) SetDefault(value T) {
	if p.finalized || !p.current.IsVoid() {
		return
	}
	p.current = supplier.Of(value)
}

// SetFinal sets the value and immediately finalizes the property.
func (p *Property[T]) SetFinal(value T) error {
	if err := p.Set(value); err != nil {
		return err
	}
	p.Finalize()
	return nil
}

// Clear resets the property to its empty state.
func (p *Property[T]) Clear() error {
	if err := p.ensureMutable(); err != nil {
		return err
	}
	p.current = supplier.Void[T]()
	return nil
}

// Finalize locks the property against further mutation. Idempotent.
func (p *Property[T]) Finalize() { p.finalized = true }

// SetError attaches a human-readable message surfaced when Get fails
// because the property is empty.
func (p *Property[T]) SetError(message string) { p.errMsg = message }

// AddDerivedFrom attaches additional upstream suppliers to this property's
// lineage without changing its current value.
func (p *Property[T]) AddDerivedFrom(nodes ...supplier.Node) {
	p.extra = append(p.extra, nodes...)
}

// IsEmpty reports whether the property currently holds no value.
func (p *Property[T]) IsEmpty() bool { return p.current.IsVoid() }

// Get reads the property's value. An unset input property fails with
// PropertyEmptyError; an unset output property fails with
// PropertyDeferredError instead, since a task upstream may still produce
// it.
func (p *Property[T]) Get() (T, error) {
	value, err := p.current.Get()
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, supplier.ErrEmpty) {
		return value, err
	}
	if p.isOutput {
		return value, kerrors.NewPropertyDeferredError(p.owner.String(), p.name)
	}
	return value, kerrors.NewPropertyEmptyError(p.owner.String(), p.name, p.errMsg)
}

// StringValue renders the property's value for task description
// templates (the documented get_description): sequences are joined with
// ", " and an empty property renders as "<empty>". This stands in for the
// reference implementation's Path-relativization, which has no general Go
// analogue across arbitrary property types.
func (p *Property[T]) StringValue() string {
	v, err := p.Get()
	if err != nil {
		return "<empty>"
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parts[i] = fmt.Sprintf("%v", rv.Index(i).Interface())
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%v", v)
}
