package address

import (
	"fmt"
	"regexp"
	"strings"

	kerrors "github.com/krakenbuild/kraken/pkg/errors"
)

// Entity is anything that can be located in an addressable Space: a
// project or a task, unified as in the reference implementation's
// "Addressable" capability.
type Entity interface {
	comparable
	Address() Address
}

// Space is a polymorphic view over a tree of Entity values that the
// resolver walks to follow a query address. Both the project tree and the
// task tree implement this over the same unified entity set.
type Space[E Entity] interface {
	Root() E
	Parent(e E) (E, bool)
	Children(e E) []E
}

// Step is one node in the tree of an address resolution: the entity and
// remaining query at that point, and either its Matches (if it is a leaf)
// or its NextSteps (otherwise).
type Step[E Entity] struct {
	Entity       E
	Query        Address
	Matches      []E
	PreviousStep *Step[E]
	NextSteps    []*Step[E]
}

// IsLeaf reports whether this step's query is root or a single relative
// element — the point at which Matches is populated instead of NextSteps.
func (s *Step[E]) IsLeaf() bool {
	return s.Query.IsRoot() || (!s.Query.IsAbsolute() && s.Query.Len() == 1)
}

// IsConcrete reports whether this step's resolution must yield at least
// one match: its query is absolute, or its first element is concrete,
// unless the previous step consumed a recursive wildcard (which permits
// zero results to flow through without failing this step).
func (s *Step[E]) IsConcrete() bool {
	if s.PreviousStep != nil && s.PreviousStep.Query.Len() > 0 && s.PreviousStep.Query.At(0).IsRecursiveWildcard() {
		return false
	}
	return s.Query.IsAbsolute() || (s.Query.Len() > 0 && s.Query.At(0).IsConcrete())
}

// Result wraps the root Step of a resolution and offers traversal helpers.
type Result[E Entity] struct {
	Root *Step[E]
}

// AllSteps returns every step in the resolution tree, root first.
func (r *Result[E]) AllSteps() []*Step[E] {
	var out []*Step[E]
	var walk func(s *Step[E])
	walk = func(s *Step[E]) {
		out = append(out, s)
		for _, n := range s.NextSteps {
			walk(n)
		}
	}
	walk(r.Root)
	return out
}

// Matches returns every matched entity across the whole resolution tree.
func (r *Result[E]) Matches() []E {
	var out []E
	for _, s := range r.AllSteps() {
		out = append(out, s.Matches...)
	}
	return out
}

var globMeta = regexp.MustCompile(`[.\\+^$(){}|\[\]]`)

// matchGlob matches name against a Kraken address glob pattern, where "*"
// matches any run of characters. The address element grammar excludes
// "[", "]", "?" and other fnmatch metacharacters, so a full fnmatch port
// is unnecessary: only "*" needs translating, and every other rune in the
// pattern (including the literal "." that is common in addresses) must be
// escaped before being used as a regular expression.
func matchGlob(pattern, name string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		if r == '*' {
			b.WriteString(".*")
		} else {
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String()).MatchString(name)
}

func recurseTree[E Entity](space Space[E], entity E, includeRoot bool) []E {
	var out []E
	var walk func(e E, include bool)
	walk = func(e E, include bool) {
		if include {
			out = append(out, e)
		}
		for _, c := range space.Children(e) {
			walk(c, true)
		}
	}
	walk(entity, includeRoot)
	return out
}

func hasChildren[E Entity](space Space[E], e E) bool {
	return len(space.Children(e)) > 0
}

// Resolve follows query starting from entity within space, producing a
// tree of resolution steps. It fails with an *errors.AddressResolutionError
// at the first concrete element with no match, or when a recursive
// wildcard's following (non-fallible) element matches nothing anywhere in
// the subtree.
//
// This is a direct port of kraken.core.address._address_resolver.resolve_address,
// including its asymmetric treatment of recursive wildcards: "**" itself
// never fails to resolve (it always has a next step, possibly over zero
// entities), but when it has a following element, that element is required
// to match somewhere in the subtree unless it is marked fallible.
func Resolve[E Entity](space Space[E], entity E, query Address) (*Result[E], error) {
	if query.IsEmpty() {
		return nil, fmt.Errorf("an empty address query cannot be resolved")
	}

	rootEntity := entity
	rootQuery := query

	var resolveStep func(previous *Step[E], entity E, query Address, restrictToContainers bool) (*Step[E], error)
	resolveStep = func(previous *Step[E], entity E, query Address, restrictToContainers bool) (*Step[E], error) {
		current := &Step[E]{Entity: entity, Query: query, PreviousStep: previous}

		var consumedElement *Element
		var nextEntities []E
		var nextRemainder Address
		haveRemainder := false

		if query.IsAbsolute() {
			nextEntities = []E{space.Root()}
			if query.Len() > 0 {
				nextRemainder = Create(false, query.IsContainer(), query.Elements())
				haveRemainder = !nextRemainder.IsEmpty()
			}
		} else {
			el := query.At(0)
			consumedElement = &el
			if query.Len() > 1 {
				nextRemainder = Create(query.IsAbsolute(), query.IsContainer(), query.Elements()[1:])
			} else {
				nextRemainder = Address{}
			}
			haveRemainder = !nextRemainder.IsEmpty()

			switch {
			case el.IsCurrent():
				nextEntities = []E{entity}
			case el.IsParent():
				if p, ok := space.Parent(entity); ok {
					nextEntities = []E{p}
				}
			case el.IsRecursiveWildcard():
				nextEntities = recurseTree(space, entity, haveRemainder)
			default:
				for _, c := range space.Children(entity) {
					name, err := c.Address().Name()
					if err != nil {
						continue
					}
					if matchGlob(el.Value, name) {
						nextEntities = append(nextEntities, c)
					}
				}
			}
		}

		if current.IsConcrete() && len(nextEntities) == 0 {
			return nil, newResolutionError(rootEntity, rootQuery, entity, query)
		}

		if !haveRemainder {
			if restrictToContainers {
				for _, e := range nextEntities {
					if hasChildren(space, e) {
						current.Matches = append(current.Matches, e)
					}
				}
			} else {
				current.Matches = append(current.Matches, nextEntities...)
			}
			return current, nil
		}

		for _, next := range nextEntities {
			step, err := resolveStep(current, next, nextRemainder, restrictToContainers)
			if err != nil {
				return nil, err
			}
			current.NextSteps = append(current.NextSteps, step)
		}

		lastRemainderElement := nextRemainder.At(nextRemainder.Len() - 1)
		if !lastRemainderElement.Fallible && consumedElement != nil && consumedElement.IsRecursiveWildcard() {
			any := false
			for _, s := range current.NextSteps {
				if len(s.NextSteps) > 0 || len(s.Matches) > 0 {
					any = true
					break
				}
			}
			if !any {
				return nil, newResolutionError(rootEntity, rootQuery, entity, query)
			}
		}

		return current, nil
	}

	root, err := resolveStep(nil, entity, query, query.IsContainer())
	if err != nil {
		return nil, err
	}
	return &Result[E]{Root: root}, nil
}

func newResolutionError[E Entity](rootEntity E, rootQuery Address, failedAt E, stepQuery Address) error {
	nonexistent := nonexistentAddress(failedAt.Address(), stepQuery)
	return kerrors.NewAddressResolutionError(
		rootEntity.Address().String(),
		rootQuery.String(),
		failedAt.Address().String(),
		stepQuery.String(),
		nonexistent.String(),
	)
}

func recursiveWildcardFailure(stepQuery Address) bool {
	return stepQuery.Len() > 0 && stepQuery.At(0).IsRecursiveWildcard()
}

// nonexistentAddress reconstructs the absolute address that does not
// exist, to illustrate the point of failure: for failures following a
// recursive wildcard, it includes the wildcard itself (e.g. ":**:d").
func nonexistentAddress(failedAt Address, stepQuery Address) Address {
	shift := 0
	if recursiveWildcardFailure(stepQuery) {
		shift = 1
	}
	notAbsolute := 0
	if !stepQuery.IsAbsolute() {
		notAbsolute = 1
	}
	n := shift + notAbsolute
	elements := stepQuery.Elements()
	if n > len(elements) {
		n = len(elements)
	}
	clipped := Create(stepQuery.IsAbsolute(), stepQuery.IsContainer(), append([]Element{}, elements[:n]...))
	return failedAt.Concat(clipped)
}
