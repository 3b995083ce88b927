package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBuildConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadBuildConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Greater(t, cfg.Parallelism, 0)
	assert.Equal(t, ".kraken/state", cfg.StateDirectory)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.ColorMode)
}

func TestLoadBuildConfigAppliesDefaultsToUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kraken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallelism: 4\n"), 0o644))

	cfg, err := LoadBuildConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadBuildConfigRejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kraken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: verbose\n"), 0o644))

	_, err := LoadBuildConfig(path)
	assert.Error(t, err)
}

func TestLoadBuildConfigRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kraken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallelism: [this is not an int\n"), 0o644))

	_, err := LoadBuildConfig(path)
	assert.Error(t, err)
}
