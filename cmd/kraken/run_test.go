package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	kctx "github.com/krakenbuild/kraken/internal/kraken/context"
)

func execCmd(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	app := &AppContext{}
	cmd := newRootCmd(app)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"-p", dir}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunExecutesDefaultTasks(t *testing.T) {
	dir := newFixtureProject(t, func(scope *kctx.Scope) error {
		trueVal := true
		_, err := scope.Project.NewTask("compile", okBehavior{}, "", &trueVal, nil)
		return err
	})

	_, err := execCmd(t, dir, "run")
	require.NoError(t, err)
}

func TestRunReturnsBuildErrorOnFailure(t *testing.T) {
	dir := newFixtureProject(t, func(scope *kctx.Scope) error {
		trueVal := true
		_, err := scope.Project.NewTask("compile", failBehavior{}, "", &trueVal, nil)
		return err
	})

	_, err := execCmd(t, dir, "run")
	require.Error(t, err)
	require.Equal(t, exitBuildOrUsage, exitCodeFor(err))
}

func TestRunWithExplicitAddress(t *testing.T) {
	dir := newFixtureProject(t, func(scope *kctx.Scope) error {
		trueVal := true
		if _, err := scope.Project.NewTask("compile", okBehavior{}, "", &trueVal, nil); err != nil {
			return err
		}
		falseVal := false
		_, err := scope.Project.NewTask("vet", okBehavior{}, "", &falseVal, nil)
		return err
	})

	_, err := execCmd(t, dir, "run", ":vet")
	require.NoError(t, err)
}
