// Package projectfinder implements the default ProjectFinder: mapping a
// starting directory to a build script and the runner that can execute
// it, walking up to the nearest enclosing repository boundary.
//
// Ground truth: kraken.common._runner's CurrentDirectoryProjectFinder and
// GitAwareProjectFinder.
package projectfinder

import (
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"

	kctx "github.com/krakenbuild/kraken/internal/kraken/context"
)

// FuncRunner is a ScriptRunner backed by a list of candidate filenames and
// a Go callback, standing in for "a user-authored script" without
// inventing a scripting language (core does not prescribe one). cmd/kraken
// registers its own Execute callback against a small, explicit registry
// of build functions keyed by script path.
type FuncRunner struct {
	Filenames []string
	Execute   func(scriptPath string, scope *kctx.Scope) error
}

// FindScript returns the first of Filenames present directly in dir.
func (r FuncRunner) FindScript(dir string) (string, bool) {
	for _, name := range r.Filenames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// ExecuteScript runs the registered Execute callback against script.
func (r FuncRunner) ExecuteScript(script string, scope *kctx.Scope) error {
	if r.Execute == nil {
		return &NoExecutorError{Script: script}
	}
	return r.Execute(script, scope)
}

// NoExecutorError reports that a FuncRunner was asked to execute a script
// but was never given a callback to do so.
type NoExecutorError struct{ Script string }

func (e *NoExecutorError) Error() string {
	return "no script executor configured for " + e.Script
}

// Default returns a FuncRunner looking for a ".kraken.go" file, the Go
// analogue of the reference implementation's ".kraken.py" convention.
func Default(execute func(scriptPath string, scope *kctx.Scope) error) FuncRunner {
	return FuncRunner{Filenames: []string{".kraken.go"}, Execute: execute}
}

// CurrentDirectoryFinder tries each of its runners' FindScript against a
// single directory and returns the first hit, ported from
// CurrentDirectoryProjectFinder.
type CurrentDirectoryFinder struct {
	Runners []kctx.ScriptRunner
}

func (f CurrentDirectoryFinder) FindProject(directory string) (string, kctx.ScriptRunner, bool) {
	for _, runner := range f.Runners {
		if script, ok := runner.FindScript(directory); ok {
			return script, runner, true
		}
	}
	return "", nil, false
}

// GitAware wraps a delegate ProjectFinder and walks directory upward,
// remembering the highest-up directory that produced a match, until it
// would cross the enclosing Git repository's boundary (detected via
// go-git, rather than a manual ".git" existence check) or reaches the
// filesystem root. This is the ProjectFinder cmd/kraken wires up as its
// default, grounded on GitAwareProjectFinder.
type GitAware struct {
	Delegate kctx.ProjectFinder
}

func NewGitAware(delegate kctx.ProjectFinder) GitAware {
	return GitAware{Delegate: delegate}
}

func (f GitAware) FindProject(directory string) (string, kctx.ScriptRunner, bool) {
	abs, err := filepath.Abs(directory)
	if err != nil {
		abs = directory
	}
	boundary := repositoryBoundary(abs)

	var (
		bestScript string
		bestRunner kctx.ScriptRunner
		found      bool
	)

	dir := abs
	for {
		if script, runner, ok := f.Delegate.FindProject(dir); ok {
			bestScript, bestRunner, found = script, runner, true
			if marksRoot(script) {
				break
			}
		}

		if boundary != "" && dir == boundary {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return bestScript, bestRunner, found
}

// marksRoot reports whether script contains the "# ::krakenw-root"
// marker that pins it as the project root even if an ancestor directory
// also has a build script.
func marksRoot(script string) bool {
	data, err := os.ReadFile(script)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "# ::krakenw-root")
}

// repositoryBoundary returns the root directory of the Git repository
// enclosing dir, or "" if dir is not inside one.
func repositoryBoundary(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	wt, err := repo.Worktree()
	if err != nil {
		return ""
	}
	return wt.Filesystem.Root()
}
