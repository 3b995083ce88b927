// Package supplier implements Kraken's lazy, lineage-tracking value graph,
// the mechanism Property uses both to defer computation and to let the
// task graph infer dependency edges from data flow.
package supplier

import "errors"

// ErrEmpty is returned by Get on a supplier with no value (the Void
// variant, or anything derived from one). Callers that need the
// Empty/Deferred distinction Property needs check for this with
// errors.Is and wrap it with owner context.
var ErrEmpty = errors.New("supplier is empty")

// Node is the untyped half of Supplier: the part needed to walk lineage
// across suppliers of different element types. Every Supplier[T] is also a
// Node.
type Node interface {
	DerivedFrom() []Node
}

// Supplier is a lazy computation of a T, exposing its immediate upstream
// suppliers so lineage can be traced.
type Supplier[T any] interface {
	Node
	Get() (T, error)
	IsVoid() bool
}

type voidSupplier[T any] struct{}

// Void returns a supplier with no value; Get always fails with ErrEmpty.
func Void[T any]() Supplier[T] { return &voidSupplier[T]{} }

func (s *voidSupplier[T]) Get() (T, error) {
	var zero T
	return zero, ErrEmpty
}
func (s *voidSupplier[T]) DerivedFrom() []Node { return nil }
func (s *voidSupplier[T]) IsVoid() bool        { return true }

type ofSupplier[T any] struct {
	value   T
	derived []Node
}

// Of returns a supplier with a fixed value and optional explicit lineage.
func Of[T any](value T, derivedFrom ...Node) Supplier[T] {
	return &ofSupplier[T]{value: value, derived: derivedFrom}
}

func (s *ofSupplier[T]) Get() (T, error)    { return s.value, nil }
func (s *ofSupplier[T]) DerivedFrom() []Node { return s.derived }
func (s *ofSupplier[T]) IsVoid() bool        { return false }

type callableSupplier[T any] struct {
	fn      func() (T, error)
	derived []Node
}

// OfCallable returns a supplier computed on demand, every call to Get. The
// caller supplies its lineage explicitly since the function's closure
// captures are opaque to the supplier.
func OfCallable[T any](fn func() (T, error), derivedFrom ...Node) Supplier[T] {
	return &callableSupplier[T]{fn: fn, derived: derivedFrom}
}

func (s *callableSupplier[T]) Get() (T, error)    { return s.fn() }
func (s *callableSupplier[T]) DerivedFrom() []Node { return s.derived }
func (s *callableSupplier[T]) IsVoid() bool        { return false }

type mappedSupplier[T, U any] struct {
	inner Supplier[T]
	fn    func(T) (U, error)
}

// Map derives a new supplier by transforming inner's value. inner is
// automatically the sole entry in the result's lineage.
func Map[T, U any](inner Supplier[T], fn func(T) (U, error)) Supplier[U] {
	return &mappedSupplier[T, U]{inner: inner, fn: fn}
}

func (s *mappedSupplier[T, U]) Get() (U, error) {
	v, err := s.inner.Get()
	if err != nil {
		var zero U
		return zero, err
	}
	return s.fn(v)
}
func (s *mappedSupplier[T, U]) DerivedFrom() []Node { return []Node{s.inner} }
func (s *mappedSupplier[T, U]) IsVoid() bool        { return s.inner.IsVoid() }

// Lineage returns the transitive closure of n's upstream suppliers, each
// exactly once, in deterministic (first-encountered, depth-first) order.
func Lineage(n Node) []Node {
	seen := map[Node]bool{}
	var out []Node
	var walk func(x Node)
	walk = func(x Node) {
		for _, d := range x.DerivedFrom() {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
			walk(d)
		}
	}
	walk(n)
	return out
}
