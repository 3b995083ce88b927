package main

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/krakenbuild/kraken/internal/address"
	"github.com/krakenbuild/kraken/internal/config"
	kctx "github.com/krakenbuild/kraken/internal/kraken/context"
	"github.com/krakenbuild/kraken/internal/kraken/executor"
	"github.com/krakenbuild/kraken/internal/kraken/task"
	"github.com/krakenbuild/kraken/internal/projectfinder"
)

// scriptRegistry maps a build-script path to the Go function that
// populates its project, standing in for "a user-authored script"
// without inventing a scripting language (core does not prescribe one).
var scriptRegistry = map[string]func(scope *kctx.Scope) error{}

// RegisterScript wires a .kraken.go build script's absolute path to the
// function that populates its project. Examples and tests call this
// before invoking the CLI in-process.
func RegisterScript(path string, fn func(scope *kctx.Scope) error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	scriptRegistry[abs] = fn
}

func runScript(path string, scope *kctx.Scope) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	fn, ok := scriptRegistry[abs]
	if !ok {
		return &projectfinder.NoExecutorError{Script: path}
	}
	return fn(scope)
}

// bootstrapContext loads the BuildConfig, constructs the logger, executor
// and observer, and loads the root project, attaching the result to app.
func bootstrapContext(app *AppContext, flags *globalFlags) error {
	buildDir := flags.buildDir
	if buildDir == "" {
		buildDir = flags.projectDir
	}
	absBuildDir, err := filepath.Abs(buildDir)
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(absBuildDir, "kraken.yaml")
	cfg, err := config.LoadBuildConfig(cfgPath)
	if err != nil {
		return err
	}
	if flags.stateDir != "" {
		cfg.StateDirectory = flags.stateDir
	}

	level, err := log.ParseLevel(flags.logLevel(cfg.LogLevel))
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	logger.SetLevel(level)

	finder := projectfinder.NewGitAware(projectfinder.CurrentDirectoryFinder{
		Runners: []kctx.ScriptRunner{projectfinder.Default(runScript)},
	})

	exec := executor.New(executor.DefaultTaskExecutor{}, cfg.Parallelism)
	buildCtx := kctx.New(absBuildDir, finder, exec, nil, logger)

	absProjectDir, err := filepath.Abs(flags.projectDir)
	if err != nil {
		return err
	}
	root, err := buildCtx.LoadProject(absProjectDir, nil, false)
	if err != nil {
		return err
	}
	buildCtx.SetFocusProject(root)

	colorize := cfg.ColorMode == "always" || (cfg.ColorMode == "auto" && isTerminal(os.Stdout))
	base := executor.NewDefaultObserver(os.Stdout)
	observer := buildColoredObserver(buildCtx, base, flags)
	if !colorize {
		// Keep the -x/-X exclusions, but print plain, unstyled text.
		base.StatusToText, base.FormatHeader, base.FormatDuration = nil, nil, nil
	}
	buildCtx.SetObserver(observer)

	app.Config = cfg
	app.Logger = logger
	app.Context = buildCtx
	return nil
}

// buildColoredObserver resolves -x/-X's task addresses against the
// already-loaded project tree and wires them into a ColoredObserver so
// excluded tasks are reported "skipped" rather than silently vanishing.
func buildColoredObserver(buildCtx *kctx.Context, base *executor.DefaultPrintingExecutorObserver, flags *globalFlags) executor.Observer {
	focus := buildCtx.FocusProject()
	var relativeTo address.Address
	if focus != nil {
		relativeTo = focus.Address()
	}

	resolve := func(addrs []string) []*task.Task {
		if len(addrs) == 0 {
			return nil
		}
		tasks, err := buildCtx.ResolveTasks(addrs, relativeTo, false)
		if err != nil {
			return nil
		}
		return tasks
	}

	return executor.NewColoredObserver(base, resolve(flags.exclude), resolve(flags.excludeSubgraph))
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
