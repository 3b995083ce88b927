package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// globalFlags holds the persistent flags every kraken subcommand shares,
// matching the CLI surface exactly.
type globalFlags struct {
	projectDir      string
	buildDir        string
	stateDir        string
	exclude         []string
	excludeSubgraph []string
	all             bool
	verbose         int
	quiet           int
}

func validateGlobalFlags(f globalFlags) error {
	abs, err := filepath.Abs(f.projectDir)
	if err != nil {
		return fmt.Errorf("resolve project directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("project directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project dir %s is not a directory", abs)
	}
	return nil
}

// logLevel resolves the effective log level name from -v/-q counters and
// the BuildConfig default.
func (f globalFlags) logLevel(configDefault string) string {
	switch {
	case f.verbose > 0:
		return "debug"
	case f.quiet > 0:
		return "warn"
	default:
		return configDefault
	}
}
