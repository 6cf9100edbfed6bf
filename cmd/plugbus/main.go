// Package main is the entry point for plugbus, a scriptable event bus
// with Lua plugins.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/plugbus/internal/app"
	"github.com/dshills/plugbus/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Output styles
var (
	okStyle    = color.New(color.FgGreen).SprintFunc()
	warnStyle  = color.New(color.FgYellow).SprintFunc()
	failStyle  = color.New(color.FgRed).SprintFunc()
	mutedStyle = color.New(color.Faint).SprintFunc()
	boldStyle  = color.New(color.Bold).SprintFunc()
)

// shutdownTimeout bounds plugin unloading on exit.
const shutdownTimeout = 10 * time.Second

// globalFlags are shared by every command.
type globalFlags struct {
	configPath  string
	pluginPaths []string
	logLevel    string
	metrics     bool
	jsonOutput  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "plugbus",
		Short: "Event bus with prioritized, cancellable handlers and Lua plugins",
		Long: `plugbus dispatches events through handler chains ordered by priority
(lowest, low, normal, high, highest, monitor). Handlers come from Lua
plugins found on the plugin search paths.

Examples:
  plugbus plugins                              # List plugins and their state
  plugbus raise player.chat player=alex message=hi
  plugbus kinds 'player.*'                     # Kinds with handlers
  plugbus serve --watch < events.jsonl         # Raise events from JSON lines`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", config.DefaultPath(), "Path to configuration file")
	pf.StringArrayVarP(&flags.pluginPaths, "plugins", "p", nil, "Plugin search path (repeatable)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&flags.metrics, "metrics", false, "Write dispatch metrics to stderr")
	pf.BoolVar(&flags.jsonOutput, "json", false, "Output in JSON format")

	root.AddCommand(
		newRaiseCmd(&flags),
		newServeCmd(&flags),
		newPluginsCmd(&flags),
		newKindsCmd(&flags),
		newVersionCmd(),
	)
	return root
}

// startApp builds and starts the application. Plugin load failures are
// printed as warnings.
func startApp(ctx context.Context, flags *globalFlags, watch bool, stderr io.Writer) (*app.Application, error) {
	a, err := app.New(app.Options{
		ConfigPath:  flags.configPath,
		PluginPaths: flags.pluginPaths,
		LogLevel:    flags.logLevel,
		Metrics:     flags.metrics,
		Watch:       watch,
		Stderr:      stderr,
	})
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return nil, err
	}
	if err := a.PluginErrors(); err != nil {
		fmt.Fprintln(stderr, warnStyle("Warning: "+err.Error()))
	}
	return a, nil
}

// stopApp shuts a down with a fresh timeout, since ctx may already be
// cancelled by a signal.
func stopApp(a *app.Application) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Shutdown(ctx)
}
