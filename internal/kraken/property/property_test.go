package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krakenbuild/kraken/internal/address"
	kerrors "github.com/krakenbuild/kraken/pkg/errors"
)

func owner(t *testing.T) address.Address {
	t.Helper()
	a, err := address.Parse(":proj:task")
	require.NoError(t, err)
	return a
}

func TestEmptyInputPropertyFailsEmpty(t *testing.T) {
	p := New[string](owner(t), "name", false)
	_, err := p.Get()
	require.Error(t, err)
	var empty *kerrors.PropertyEmptyError
	assert.ErrorAs(t, err, &empty)
}

func TestEmptyOutputPropertyFailsDeferred(t *testing.T) {
	p := New[string](owner(t), "result", true)
	_, err := p.Get()
	require.Error(t, err)
	var deferred *kerrors.PropertyDeferredError
	assert.ErrorAs(t, err, &deferred)
}

func TestSetThenGet(t *testing.T) {
	p := New[int](owner(t), "count", false)
	require.NoError(t, p.Set(5))
	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestFinalizedPropertyRejectsMutation(t *testing.T) {
	p := New[int](owner(t), "count", false)
	require.NoError(t, p.SetFinal(1))
	err := p.Set(2)
	require.Error(t, err)
	var finalized *kerrors.PropertyFinalizedError
	assert.ErrorAs(t, err, &finalized)
}

func TestSetDefaultDoesNotOverride(t *testing.T) {
	p := New[int](owner(t), "count", false)
	require.NoError(t, p.Set(9))
	p.SetDefault(1)
	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestSetDefaultAppliesWhenEmpty(t *testing.T) {
	p := New[int](owner(t), "count", false)
	p.SetDefault(7)
	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestClearResetsToEmpty(t *testing.T) {
	p := New[int](owner(t), "count", false)
	require.NoError(t, p.Set(1))
	require.NoError(t, p.Clear())
	assert.True(t, p.IsEmpty())
}
