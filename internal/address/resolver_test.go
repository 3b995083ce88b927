package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// node is a minimal Entity implementation used to exercise Resolve against
// the same tree shape as the reference implementation's resolver doctests.
type node struct {
	parent   *node
	addr     Address
	children []*node
}

func (n *node) Address() Address { return n.addr }

func newNode(parent *node, name string) *node {
	n := &node{parent: parent}
	if parent == nil {
		n.addr = Root
		return n
	}
	el, err := ElementOf(name)
	if err != nil {
		panic(err)
	}
	n.addr = parent.addr.Append(el)
	parent.children = append(parent.children, n)
	return n
}

type nodeSpace struct {
	root *node
}

func (s nodeSpace) Root() *node { return s.root }

func (s nodeSpace) Parent(n *node) (*node, bool) {
	if n.parent == nil {
		return nil, false
	}
	return n.parent, true
}

func (s nodeSpace) Children(n *node) []*node { return n.children }

func buildTestTree() (nodeSpace, *node, *node, *node, *node, *node) {
	root := newNode(nil, "")
	a := newNode(root, "a")
	aa := newNode(a, "a")
	c := newNode(root, "c")
	ca := newNode(c, "a")
	return nodeSpace{root: root}, root, a, aa, c, ca
}

func resolveMatches(t *testing.T, space Space[*node], entity *node, query string) []*node {
	t.Helper()
	q := mustParse(t, query)
	result, err := Resolve[*node](space, entity, q)
	require.NoError(t, err)
	return result.Matches()
}

func TestResolveBasic(t *testing.T) {
	space, root, a, aa, c, ca := buildTestTree()

	matches := resolveMatches(t, space, aa, ":a")
	require.Len(t, matches, 1)
	assert.Same(t, a, matches[0])

	matches = resolveMatches(t, space, c, ":a:a")
	require.Len(t, matches, 1)
	assert.Same(t, aa, matches[0])

	matches = resolveMatches(t, space, c, "..:a")
	require.Len(t, matches, 1)
	assert.Same(t, a, matches[0])

	matches = resolveMatches(t, space, root, "*:a")
	require.Len(t, matches, 2)
	assert.Contains(t, matches, aa)
	assert.Contains(t, matches, ca)

	matches = resolveMatches(t, space, root, "d?")
	assert.Len(t, matches, 0)
}

func TestResolveConcreteFailure(t *testing.T) {
	space, root, _, _, _, _ := buildTestTree()
	_, err := Resolve[*node](space, root, mustParse(t, "d"))
	require.Error(t, err)
	var rerr interface {
		Error() string
	}
	rerr = err
	assert.Contains(t, rerr.Error(), "d")
}

func TestResolveRecursiveWildcard(t *testing.T) {
	space, root, _, _, c, _ := buildTestTree()

	matches := resolveMatches(t, space, root, "**:c")
	require.Len(t, matches, 1)
	assert.Same(t, c, matches[0])

	_, err := Resolve[*node](space, root, mustParse(t, "**:d"))
	require.Error(t, err)

	matches = resolveMatches(t, space, root, "**:d?")
	assert.Len(t, matches, 0)
}
