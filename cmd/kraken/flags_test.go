package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateGlobalFlagsRejectsMissingDirectory(t *testing.T) {
	err := validateGlobalFlags(globalFlags{projectDir: "/nonexistent/path/does/not/exist"})
	assert.Error(t, err)
}

func TestValidateGlobalFlagsAcceptsExistingDirectory(t *testing.T) {
	err := validateGlobalFlags(globalFlags{projectDir: t.TempDir()})
	assert.NoError(t, err)
}

func TestLogLevelRespectsVerboseAndQuiet(t *testing.T) {
	assert.Equal(t, "debug", globalFlags{verbose: 1}.logLevel("info"))
	assert.Equal(t, "warn", globalFlags{quiet: 1}.logLevel("info"))
	assert.Equal(t, "info", globalFlags{}.logLevel("info"))
}
