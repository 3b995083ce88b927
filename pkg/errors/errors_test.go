package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("config.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "config.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "config.yaml")
}

func TestValidationErrorAggregatesFields(t *testing.T) {
	t.Parallel()

	err := NewValidationError("steps[1].depends_on", "references unknown step", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "steps[1].depends_on", validationErr.Field)
	require.Contains(t, validationErr.Message, "references unknown step")
}

func TestInvalidAddressErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("invalid address element")
	err := NewInvalidAddressError(":foo:!bad", "invalid address element", underlying)

	var addrErr *InvalidAddressError
	require.ErrorAs(t, err, &addrErr)
	require.Equal(t, ":foo:!bad", addrErr.Address)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), ":foo:!bad")
}

func TestAddressResolutionErrorReportsRecursiveWildcardFailure(t *testing.T) {
	t.Parallel()

	err := NewAddressResolutionError(":proj", ":proj:**:missing", ":proj", "**:missing", ":proj:**:missing")

	var resolutionErr *AddressResolutionError
	require.ErrorAs(t, err, &resolutionErr)
	require.True(t, resolutionErr.IsRecursiveWildcardFailure())
	require.Contains(t, err.Error(), ":proj:**:missing")
}

func TestProjectLoaderErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("script panicked")
	err := NewProjectLoaderError(":sub", "build script failed", underlying)

	var loaderErr *ProjectLoaderError
	require.ErrorAs(t, err, &loaderErr)
	require.Equal(t, ":sub", loaderErr.ProjectAddress)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestBuildErrorListsFailedTasks(t *testing.T) {
	t.Parallel()

	err := NewBuildError([]string{":proj:a", ":proj:b"})

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	require.Equal(t, []string{":proj:a", ":proj:b"}, buildErr.FailedTaskAddresses)
	require.Contains(t, err.Error(), ":proj:a")
	require.Contains(t, err.Error(), ":proj:b")
}

func TestTaskResolutionErrorIncludesSelector(t *testing.T) {
	t.Parallel()

	err := NewTaskResolutionError(":missing")

	var resolutionErr *TaskResolutionError
	require.ErrorAs(t, err, &resolutionErr)
	require.Contains(t, err.Error(), ":missing")
}
