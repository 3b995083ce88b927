package main

import (
	"errors"

	kerrors "github.com/krakenbuild/kraken/pkg/errors"
)

// exit codes this command maps errors into.
const (
	exitSuccess       = 0
	exitBuildOrUsage  = 1
	exitBuildScript   = 2
	exitInternalError = 3
)

// exitCodeFor classifies an error returned from command execution into
// one of the exit codes main.go reports via os.Exit.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}

	var loaderErr *kerrors.ProjectLoaderError
	if errors.As(err, &loaderErr) {
		return exitBuildScript
	}

	var buildErr *kerrors.BuildError
	if errors.As(err, &buildErr) {
		return exitBuildOrUsage
	}

	var addrErr *kerrors.InvalidAddressError
	var resolveErr *kerrors.AddressResolutionError
	var taskErr *kerrors.TaskResolutionError
	var notFoundErr *kerrors.ProjectNotFoundError
	var interruptedErr *kerrors.InterruptedError
	switch {
	case errors.As(err, &addrErr),
		errors.As(err, &resolveErr),
		errors.As(err, &taskErr),
		errors.As(err, &notFoundErr),
		errors.As(err, &interruptedErr):
		return exitBuildOrUsage
	}

	return exitInternalError
}
