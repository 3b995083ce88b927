package main

import (
	"github.com/charmbracelet/log"

	"github.com/krakenbuild/kraken/internal/config"
	kctx "github.com/krakenbuild/kraken/internal/kraken/context"
)

// AppContext bundles the long-lived services a kraken invocation wires up
// once at startup: the logger, the loaded BuildConfig, and (once the root
// project has been located and loaded) the build Context itself.
type AppContext struct {
	Logger  *log.Logger
	Config  *config.BuildConfig
	Context *kctx.Context
}

// LoggerFor derives a component-scoped child logger, matching the
// teacher's AppContext.LoggerFor idiom.
func (a *AppContext) LoggerFor(component string) *log.Logger {
	if a == nil || a.Logger == nil {
		return log.Default()
	}
	return a.Logger.With("component", component)
}
