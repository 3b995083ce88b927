package config

import (
	"os"
	"regexp"
	"runtime"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	kerrors "github.com/krakenbuild/kraken/pkg/errors"
)

// BuildConfig holds the persisted settings a Kraken invocation loads from
// disk: worker parallelism, where state/build artefacts live, and the
// default logging/output posture. Persisted state's on-disk format is
// otherwise unconstrained; YAML is the format this repo chooses, loaded
// with yaml.v3 and checked against validator.v10 struct tags.
type BuildConfig struct {
	// Parallelism bounds how many tasks the executor's worker pool runs
	// concurrently. Zero/omitted defaults to GOMAXPROCS at load time.
	Parallelism int `yaml:"parallelism,omitempty" validate:"omitempty,min=1,max=256"`

	// StateDirectory is where persisted build state (status snapshots,
	// locks) is written; defaults to ".kraken/state" under the build
	// directory if empty.
	StateDirectory string `yaml:"stateDirectory,omitempty"`

	// LogLevel is the default log level for new Context instances:
	// debug, info, warn, or error.
	LogLevel string `yaml:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// ColorMode controls whether build output is colorized: auto, always,
	// or never. "auto" defers to whether the output stream is a terminal.
	ColorMode string `yaml:"colorMode,omitempty" validate:"omitempty,oneof=auto always never"`
}

// Defaults fills unset fields with their runtime defaults: Parallelism
// becomes GOMAXPROCS, StateDirectory becomes ".kraken/state", LogLevel
// becomes "info", ColorMode becomes "auto".
func (c *BuildConfig) Defaults() {
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.GOMAXPROCS(0)
	}
	if c.StateDirectory == "" {
		c.StateDirectory = ".kraken/state"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ColorMode == "" {
		c.ColorMode = "auto"
	}
}

// LoadBuildConfig reads, parses and validates a BuildConfig from path,
// applying Defaults() to whatever the file left unset. A missing file is
// not an error: it returns a config populated entirely by Defaults().
func LoadBuildConfig(path string) (*BuildConfig, error) {
	var cfg BuildConfig

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		cfg.Defaults()
		return &cfg, nil
	case err != nil:
		return nil, kerrors.NewParseError(path, 0, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, kerrors.NewParseError(path, extractLine(err), err)
	}

	if err := validatorInstance().Struct(&cfg); err != nil {
		return nil, buildConfigValidationError(err)
	}

	cfg.Defaults()
	return &cfg, nil
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// extractLine returns the line number a yaml.v3 error message reports, or
// 0 when the message names none.
func extractLine(err error) int {
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func buildConfigValidationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return kerrors.NewValidationError(fe.Namespace(), fe.Error(), err)
	}
	return kerrors.NewValidationError("", err.Error(), err)
}
