package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krakenbuild/kraken/internal/address"
	"github.com/krakenbuild/kraken/internal/kraken/status"
)

type fakeProject struct{ addr address.Address }

func (p fakeProject) Address() address.Address { return p.addr }

func addr(t *testing.T, s string) address.Address {
	t.Helper()
	a, err := address.Parse(s)
	require.NoError(t, err)
	return a
}

type noopBehavior struct{}

func (noopBehavior) Prepare(t *Task) (status.Status, error)  { return status.Pend(), nil }
func (noopBehavior) Execute(t *Task) (status.Status, error)  { return status.Succeed(), nil }
func (noopBehavior) Teardown(t *Task) (status.Status, error) { return status.Succeed(), nil }

func TestGroupTaskAlwaysSkipsPrepare(t *testing.T) {
	proj := fakeProject{addr(t, ":proj")}
	g := NewGroupTask(addr(t, ":proj:build"), proj, "build")
	s, err := g.Prepare()
	require.NoError(t, err)
	assert.True(t, s.IsSkipped())
}

func TestGroupTaskExecuteIsForbidden(t *testing.T) {
	proj := fakeProject{addr(t, ":proj")}
	g := NewGroupTask(addr(t, ":proj:build"), proj, "build")
	_, err := g.Execute()
	require.Error(t, err)
}

func TestVoidTaskDefaultsToSkip(t *testing.T) {
	proj := fakeProject{addr(t, ":proj")}
	v := NewVoidTask(addr(t, ":proj:placeholder"), proj, "placeholder")
	s, err := v.Prepare()
	require.NoError(t, err)
	assert.True(t, s.IsSkipped())
}

func TestVoidTaskRunsWhenSkipExplicitlyFalse(t *testing.T) {
	proj := fakeProject{addr(t, ":proj")}
	v := NewVoidTask(addr(t, ":proj:placeholder"), proj, "placeholder")
	require.NoError(t, v.skipProp.Set(false))
	s, err := v.Prepare()
	require.NoError(t, err)
	assert.True(t, s.IsPending())
}

func TestTagAddGetRemove(t *testing.T) {
	proj := fakeProject{addr(t, ":proj")}
	tsk := NewPlainTask(addr(t, ":proj:build"), proj, "build", noopBehavior{})
	tag := tsk.AddTag("skip", "flaky", "user")
	assert.True(t, tsk.IsSkipped())
	assert.Len(t, tsk.GetTags("skip"), 1)
	tsk.RemoveTag(tag)
	assert.False(t, tsk.IsSkipped())
}

func TestGetRelationshipsFromPropertyLineage(t *testing.T) {
	proj := fakeProject{addr(t, ":proj")}
	upstream := NewPlainTask(addr(t, ":proj:compile"), proj, "compile", noopBehavior{})
	out := Declare[string](upstream, "output", true)
	require.NoError(t, out.Set("artifact.bin"))

	downstream := NewPlainTask(addr(t, ":proj:link"), proj, "link", noopBehavior{})
	in := Declare[string](downstream, "input", false)
	require.NoError(t, in.Set(""))
	in.AddDerivedFrom(out)

	resolve := func(a address.Address) (*Task, error) {
		if a.Equal(upstream.Address()) {
			return upstream, nil
		}
		return nil, nil
	}

	edges, err := downstream.GetRelationships(resolve)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, upstream, edges[0].To)
	assert.Equal(t, downstream, edges[0].From)
	assert.True(t, edges[0].Strict)
}

func TestGetRelationshipsDeclaredInverseFlipsDirection(t *testing.T) {
	proj := fakeProject{addr(t, ":proj")}
	a := NewPlainTask(addr(t, ":proj:a"), proj, "a", noopBehavior{})
	b := NewPlainTask(addr(t, ":proj:b"), proj, "b", noopBehavior{})

	a.RequiredBy(b, true)

	resolve := func(addr address.Address) (*Task, error) { return nil, nil }
	edges, err := a.GetRelationships(resolve)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, b, edges[0].From)
	assert.Equal(t, a, edges[0].To)
}

func TestGetRelationshipsSkipsUnresolvedFallibleAddress(t *testing.T) {
	proj := fakeProject{addr(t, ":proj")}
	tsk := NewPlainTask(addr(t, ":proj:build"), proj, "build", noopBehavior{})
	target := addr(t, ":proj:maybe?")
	tsk.DependsOnAddress(target, true)

	resolve := func(a address.Address) (*Task, error) {
		return nil, assert.AnError
	}

	edges, err := tsk.GetRelationships(resolve)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestSetAddIsUniqueAndOrdered(t *testing.T) {
	proj := fakeProject{addr(t, ":proj")}
	a := NewPlainTask(addr(t, ":proj:a"), proj, "a", noopBehavior{})
	b := NewPlainTask(addr(t, ":proj:b"), proj, "b", noopBehavior{})

	set := NewSet()
	set.Update([]*Task{a, b, a})
	assert.Equal(t, []*Task{a, b}, set.Slice())
}

func TestDescriptionInterpolatesProperties(t *testing.T) {
	proj := fakeProject{addr(t, ":proj")}
	tsk := NewPlainTask(addr(t, ":proj:build"), proj, "build", noopBehavior{})
	name := Declare[string](tsk, "target", false)
	require.NoError(t, name.Set("myapp"))
	tsk.SetDescription("Build %target")
	assert.Equal(t, "Build myapp", tsk.Description())
}
