package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krakenbuild/kraken/internal/address"
	kerrors "github.com/krakenbuild/kraken/pkg/errors"
)

func TestExitCodeForClassifiesErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"build error", kerrors.NewBuildError([]string{":build"}), exitBuildOrUsage},
		{"loader error", kerrors.NewProjectLoaderError(":sub", "script failed", nil), exitBuildScript},
		{"task resolution error", kerrors.NewTaskResolutionError(":missing"), exitBuildOrUsage},
		{"unrelated error", errors.New("boom"), exitInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCodeFor(tc.err))
		})
	}
}

// TestExitCodeForClassifiesMalformedAddress mirrors a user typing a
// malformed selector on the command line (e.g. "kraken run :foo:!bad"):
// address.Parse must return an *kerrors.InvalidAddressError, and that
// typed error must reach exitCodeFor unmodified so it maps to
// exitBuildOrUsage rather than falling through to exitInternalError.
func TestExitCodeForClassifiesMalformedAddress(t *testing.T) {
	_, err := address.Parse(":foo:!bad")
	require.Error(t, err)

	var addrErr *kerrors.InvalidAddressError
	require.ErrorAs(t, err, &addrErr)

	assert.Equal(t, exitBuildOrUsage, exitCodeFor(err))
}
