package supplier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoidFails(t *testing.T) {
	s := Void[int]()
	_, err := s.Get()
	assert.True(t, errors.Is(err, ErrEmpty))
	assert.True(t, s.IsVoid())
}

func TestOfReturnsValue(t *testing.T) {
	s := Of(42)
	v, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, s.IsVoid())
}

func TestMapTransformsValue(t *testing.T) {
	s := Of(2)
	doubled := Map(s, func(v int) (int, error) { return v * 2, nil })
	v, err := doubled.Get()
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestLineageClosureIsDeterministicAndDeduped(t *testing.T) {
	root := Of("root")
	mid := Map(root, func(s string) (string, error) { return s + "-mid", nil })
	leaf := Map(mid, func(s string) (string, error) { return s + "-leaf", nil })

	// leaf2 shares the same mid upstream; lineage of a third node
	// depending on both leaf and leaf2 must list mid only once.
	leaf2 := Map(mid, func(s string) (string, error) { return s + "-leaf2", nil })

	combined := OfCallable(func() (string, error) { return "", nil }, leaf, leaf2)
	lineage := Lineage(combined)

	assert.Equal(t, []Node{leaf, mid, root, leaf2}, lineage)
}

func TestOfCallableInvokesFunction(t *testing.T) {
	calls := 0
	s := OfCallable(func() (int, error) {
		calls++
		return calls, nil
	})
	v1, _ := s.Get()
	v2, _ := s.Get()
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
}
