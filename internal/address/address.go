// Package address implements Kraken's hierarchical addressing scheme: an
// immutable, parsed representation of a project or task reference,
// comparable to a filesystem path but colon-separated (":a:b:c"). It is
// ported element-for-element from the reference implementation in
// kraken-core (kraken.core.address._address), preserving every parsing and
// normalization edge case rather than re-deriving the algorithm from the
// prose description.
package address

import (
	"regexp"
	"strings"

	kerrors "github.com/krakenbuild/kraken/pkg/errors"
)

const (
	// Separator delimits elements within an address.
	Separator = ":"

	elementCurrent          = "."
	elementParent           = ".."
	elementRecursiveWildcard = "**"
)

var elementValidation = regexp.MustCompile(`^[a-zA-Z0-9/_\-\.\*]+$`)

// Element is a single component between colons in an Address. A trailing
// "?" in the textual form marks the element Fallible, permitting zero
// matches during resolution without error.
type Element struct {
	Value    string
	Fallible bool
}

// ElementOf parses a single address element, splitting off a trailing "?"
// before validating the remaining value against the element grammar.
func ElementOf(value string) (Element, error) {
	fallible := false
	if strings.HasSuffix(value, "?") {
		fallible = true
		value = value[:len(value)-1]
	}
	if !elementValidation.MatchString(value) {
		raw := value
		if fallible {
			raw += "?"
		}
		return Element{}, kerrors.NewInvalidAddressError(raw, "invalid address element", nil)
	}
	return Element{Value: value, Fallible: fallible}, nil
}

// String renders the element in its textual form, including the trailing
// "?" if the element is fallible.
func (e Element) String() string {
	if e.Fallible {
		return e.Value + "?"
	}
	return e.Value
}

// IsCurrent reports whether the element is "." (the current project).
func (e Element) IsCurrent() bool { return e.Value == elementCurrent }

// IsParent reports whether the element is ".." (the parent project).
func (e Element) IsParent() bool { return e.Value == elementParent }

// IsRecursiveWildcard reports whether the element is "**".
func (e Element) IsRecursiveWildcard() bool { return e.Value == elementRecursiveWildcard }

// IsConcrete reports whether the element can only ever have exactly one
// match: it is neither fallible nor a glob.
func (e Element) IsConcrete() bool {
	return !e.Fallible && !strings.Contains(e.Value, "*")
}

// Address is an immutable, parsed address. The zero value is the empty
// address (Address.EMPTY in the reference implementation) and is the only
// invalid address — every other value is well formed.
type Address struct {
	absolute  bool
	container bool
	elements  []Element
}

// Root, Empty, Current, Parent, Wildcard and RecursiveWildcard are the
// distinguished address constants from the reference implementation.
var (
	Root              = Create(true, true, nil)
	Empty             = Address{}
	Current           = Create(false, false, []Element{{Value: elementCurrent}})
	Parent            = Create(false, false, []Element{{Value: elementParent}})
	Wildcard          = Create(false, false, []Element{{Value: "*"}})
	RecursiveWildcard = Create(false, false, []Element{{Value: elementRecursiveWildcard}})
)

// Create builds an address directly from its constituent parts, applying
// the same pathological-form promotion the reference implementation
// applies in both its constructor and its Address.create(): an address
// whose element list is empty is promoted to both absolute and container
// if either flag was already set, since such an address is semantically
// equivalent to the root address.
func Create(absolute, container bool, elements []Element) Address {
	if len(elements) == 0 && (container || absolute) {
		absolute = true
		container = true
	}
	return Address{absolute: absolute, container: container, elements: elements}
}

// Parse parses a string into an Address. See the package documentation for
// the grammar; Parse implements exactly the reference implementation's
// _parse(), including its handling of the empty string (the empty
// address) and the lone separator ":" (the root address).
func Parse(value string) (Address, error) {
	var elementStrings []string
	switch {
	case value == "":
		elementStrings = nil
	case value == Separator:
		elementStrings = []string{""}
	default:
		elementStrings = strings.Split(value, Separator)
	}

	absolute := false
	if len(elementStrings) > 0 && elementStrings[0] == "" {
		absolute = true
		elementStrings = elementStrings[1:]
	}
	container := false
	if len(elementStrings) > 0 && elementStrings[len(elementStrings)-1] == "" {
		container = true
		elementStrings = elementStrings[:len(elementStrings)-1]
	}

	elements := make([]Element, 0, len(elementStrings))
	for _, s := range elementStrings {
		el, err := ElementOf(s)
		if err != nil {
			return Address{}, kerrors.NewInvalidAddressError(value, "invalid address element", err)
		}
		elements = append(elements, el)
	}

	return Create(absolute, container, elements), nil
}

// MustParse is like Parse but panics on error. Intended for package-level
// constants and literals in tests, never for parsing user input.
func MustParse(value string) Address {
	a, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the address back to its textual form. Parse(a.String())
// always reproduces a.
func (a Address) String() string {
	parts := make([]string, len(a.elements))
	for i, e := range a.elements {
		parts[i] = e.String()
	}
	value := strings.Join(parts, Separator)
	if a.absolute {
		value = Separator + value
	}
	if a.container && !a.IsRoot() {
		value += Separator
	}
	return value
}

// IsEmpty reports whether this is the empty address — the only invalid
// address, and the zero value of Address.
func (a Address) IsEmpty() bool { return !a.absolute && len(a.elements) == 0 }

// IsAbsolute reports whether the address begins with ":".
func (a Address) IsAbsolute() bool { return a.absolute }

// IsRoot reports whether this is the root address (":").
func (a Address) IsRoot() bool { return a.absolute && len(a.elements) == 0 }

// IsContainer reports whether the address ends with ":".
func (a Address) IsContainer() bool { return a.container }

// IsConcrete reports whether the address is absolute and every element is
// concrete (no globs, no fallible markers).
func (a Address) IsConcrete() bool {
	if !a.absolute {
		return false
	}
	for _, e := range a.elements {
		if !e.IsConcrete() {
			return false
		}
	}
	return true
}

// Len returns the number of elements in the address.
func (a Address) Len() int { return len(a.elements) }

// At returns the nth element of the address.
func (a Address) At(i int) Element { return a.elements[i] }

// Elements returns the address's elements. The slice must not be mutated.
func (a Address) Elements() []Element { return a.elements }

// Equal reports whether two addresses have the same absolute, container
// and element state.
func (a Address) Equal(other Address) bool {
	if a.absolute != other.absolute || a.container != other.container {
		return false
	}
	if len(a.elements) != len(other.elements) {
		return false
	}
	for i := range a.elements {
		if a.elements[i] != other.elements[i] {
			return false
		}
	}
	return true
}

// Normalize removes superfluous "." and ".." elements. A normalized
// address is never a container unless keepContainer is set. A relative
// address that normalizes to zero elements becomes "." rather than empty.
func (a Address) Normalize(keepContainer bool) Address {
	elements := make([]Element, 0, len(a.elements))
	for _, cur := range a.elements {
		switch {
		case cur.IsParent() && len(elements) > 0:
			elements = elements[:len(elements)-1]
		case cur.IsCurrent():
			// dropped
		default:
			elements = append(elements, cur)
		}
	}
	if !a.absolute && len(elements) == 0 {
		elements = []Element{{Value: elementCurrent}}
	}
	return Create(a.absolute, a.container && keepContainer, elements)
}

// Concat concatenates two addresses. If other is absolute, other is
// returned unchanged (an absolute address discards everything before it).
func (a Address) Concat(other Address) Address {
	if other.absolute {
		return other
	}
	elements := make([]Element, 0, len(a.elements)+len(other.elements))
	elements = append(elements, a.elements...)
	elements = append(elements, other.elements...)
	return Create(a.absolute, other.container, elements)
}

// Append returns a new, non-container address with one more element.
func (a Address) Append(element Element) Address {
	elements := make([]Element, 0, len(a.elements)+1)
	elements = append(elements, a.elements...)
	elements = append(elements, element)
	return Create(a.absolute, false, elements)
}

// AppendString is a convenience wrapper around Append that parses a single
// element from a string.
func (a Address) AppendString(element string) (Address, error) {
	el, err := ElementOf(element)
	if err != nil {
		return Address{}, err
	}
	return a.Append(el), nil
}

// SetContainer returns a copy of the address with its container flag set.
// The root address is always a container and cannot be demoted; the empty
// address has no valid container state.
func (a Address) SetContainer(isContainer bool) (Address, error) {
	if a.IsRoot() {
		if !isContainer {
			return Address{}, kerrors.NewInvalidAddressError(a.String(), "cannot set container status to false for root address", nil)
		}
		return a, nil
	}
	if a.IsEmpty() {
		return Address{}, kerrors.NewInvalidAddressError(a.String(), "cannot set container status for empty address", nil)
	}
	return Create(a.absolute, isContainer, a.elements), nil
}

// Name returns the value of the last element. Fails for the root and
// empty addresses, which have no elements.
func (a Address) Name() (string, error) {
	if len(a.elements) == 0 {
		return "", kerrors.NewInvalidAddressError(a.String(), "has no elements, and thus no name", nil)
	}
	return a.elements[len(a.elements)-1].Value, nil
}

// Parent returns the parent address, preserving the container flag. The
// root and empty addresses have no parent.
func (a Address) Parent() (Address, error) {
	if a.absolute && len(a.elements) == 0 {
		return Address{}, kerrors.NewInvalidAddressError(a.String(), "root address has no parent", nil)
	}
	if !a.absolute && len(a.elements) == 0 {
		return Address{}, kerrors.NewInvalidAddressError(a.String(), "empty address has no parent", nil)
	}

	last := a.elements[len(a.elements)-1]
	switch {
	case !a.absolute && last.IsCurrent():
		return Create(false, a.container, []Element{{Value: elementParent}}), nil
	case !a.absolute && last.IsParent():
		elements := make([]Element, 0, len(a.elements)+1)
		elements = append(elements, a.elements...)
		elements = append(elements, Element{Value: elementParent})
		return Create(false, a.container, elements), nil
	case !a.absolute && len(a.elements) == 1:
		return Current, nil
	default:
		return Create(a.absolute, a.container, a.elements[:len(a.elements)-1]), nil
	}
}
