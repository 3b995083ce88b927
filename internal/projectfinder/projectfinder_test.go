package projectfinder

import (
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kctx "github.com/krakenbuild/kraken/internal/kraken/context"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestFuncRunnerFindScript(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".kraken.go"), "package build\n")

	r := Default(nil)
	script, ok := r.FindScript(dir)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, ".kraken.go"), script)
}

func TestFuncRunnerExecuteScriptWithoutCallbackErrors(t *testing.T) {
	r := Default(nil)
	err := r.ExecuteScript("/tmp/whatever/.kraken.go", &kctx.Scope{})
	assert.Error(t, err)
}

func TestFuncRunnerExecuteScriptInvokesCallback(t *testing.T) {
	called := false
	r := Default(func(script string, scope *kctx.Scope) error {
		called = true
		return nil
	})
	require.NoError(t, r.ExecuteScript("script", &kctx.Scope{}))
	assert.True(t, called)
}

func TestCurrentDirectoryFinderReturnsFirstMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".kraken.go"), "package build\n")

	other := Default(nil)
	finder := CurrentDirectoryFinder{Runners: []kctx.ScriptRunner{other}}

	script, runner, ok := finder.FindProject(dir)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, ".kraken.go"), script)
	assert.NotNil(t, runner)
}

func TestCurrentDirectoryFinderNoMatch(t *testing.T) {
	dir := t.TempDir()
	finder := CurrentDirectoryFinder{Runners: []kctx.ScriptRunner{Default(nil)}}

	_, _, ok := finder.FindProject(dir)
	assert.False(t, ok)
}

func TestGitAwareStopsAtRepositoryBoundary(t *testing.T) {
	repoRoot := t.TempDir()
	_, err := git.PlainInit(repoRoot, false)
	require.NoError(t, err)

	sub := filepath.Join(repoRoot, "a", "b")
	writeFile(t, filepath.Join(repoRoot, ".kraken.go"), "package build\n")

	finder := NewGitAware(CurrentDirectoryFinder{Runners: []kctx.ScriptRunner{Default(nil)}})
	script, _, ok := finder.FindProject(sub)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(repoRoot, ".kraken.go"), script)
}

func TestGitAwarePrefersRootMarkedScript(t *testing.T) {
	repoRoot := t.TempDir()
	_, err := git.PlainInit(repoRoot, false)
	require.NoError(t, err)

	nested := filepath.Join(repoRoot, "nested")
	writeFile(t, filepath.Join(repoRoot, ".kraken.go"), "package build\n# ::krakenw-root\n")
	writeFile(t, filepath.Join(nested, ".kraken.go"), "package build\n")

	finder := NewGitAware(CurrentDirectoryFinder{Runners: []kctx.ScriptRunner{Default(nil)}})
	script, _, ok := finder.FindProject(nested)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(repoRoot, ".kraken.go"), script)
}
