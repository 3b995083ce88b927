package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	kctx "github.com/krakenbuild/kraken/internal/kraken/context"
	"github.com/krakenbuild/kraken/internal/kraken/status"
	"github.com/krakenbuild/kraken/internal/kraken/task"
)

// okBehavior is a minimal task.Behavior that always succeeds immediately,
// standing in for a real build action in tests.
type okBehavior struct{}

func (okBehavior) Prepare(_ *task.Task) (status.Status, error)  { return status.Pend(), nil }
func (okBehavior) Execute(_ *task.Task) (status.Status, error)  { return status.Succeed(), nil }
func (okBehavior) Teardown(_ *task.Task) (status.Status, error) { return status.Succeed(), nil }

// failBehavior always fails, for testing BuildError propagation.
type failBehavior struct{}

func (failBehavior) Prepare(_ *task.Task) (status.Status, error) { return status.Pend(), nil }
func (failBehavior) Execute(_ *task.Task) (status.Status, error) {
	return status.Fail("fixture failure"), nil
}
func (failBehavior) Teardown(_ *task.Task) (status.Status, error) { return status.Succeed(), nil }

// newFixtureProject writes a single ".kraken.go" script at dir and
// registers fn as the callback that populates its project when the CLI
// loads it, returning dir for use as --project-dir.
func newFixtureProject(t *testing.T, fn func(scope *kctx.Scope) error) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, ".kraken.go")
	require.NoError(t, os.WriteFile(script, []byte("package build\n"), 0o644))
	RegisterScript(script, fn)
	t.Cleanup(func() { delete(scriptRegistry, script) })
	return dir
}
