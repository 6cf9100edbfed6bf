// Package app wires the plugbus components together and manages their
// lifecycle: configuration, logging, metrics, the event bus, the plugin
// manager and the hot reload watcher.
package app

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"github.com/dshills/plugbus/internal/config"
	"github.com/dshills/plugbus/internal/event"
	"github.com/dshills/plugbus/internal/event/events"
	"github.com/dshills/plugbus/internal/logging"
	"github.com/dshills/plugbus/internal/plugin"
	"github.com/dshills/plugbus/internal/telemetry"
)

// Application owns one bus and the plugins bound to it.
type Application struct {
	mu sync.Mutex

	cfg     *config.Config
	logger  *logging.Logger
	bus     *event.Bus
	manager *plugin.Manager
	watcher *plugin.Watcher

	metricsShutdown func(context.Context) error

	// Plugin failures from the last Start
	pluginErr error

	running atomic.Bool
	stopped bool
}

// Options configures the application. Non-zero fields override the
// configuration file.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// PluginPaths replaces the configured plugin search paths.
	PluginPaths []string

	// LogLevel sets the logging verbosity.
	LogLevel string

	// Metrics enables the stdout metrics exporter.
	Metrics bool

	// Watch enables hot reload.
	Watch bool

	// Stderr receives logs when no log file is configured. Defaults to
	// os.Stderr.
	Stderr io.Writer

	// MetricsOut receives exported metrics. Defaults to Stderr.
	MetricsOut io.Writer
}

// New loads configuration and builds every component. Nothing runs until
// Start.
func New(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	if len(opts.PluginPaths) > 0 {
		cfg.Plugins.Paths = opts.PluginPaths
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	cfg.Metrics.Enabled = cfg.Metrics.Enabled || opts.Metrics
	cfg.Plugins.Watch = cfg.Plugins.Watch || opts.Watch
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.MetricsOut == nil {
		opts.MetricsOut = opts.Stderr
	}
	return NewWithConfig(cfg, opts.Stderr, opts.MetricsOut)
}

// NewWithConfig builds the application from a validated configuration.
func NewWithConfig(cfg *config.Config, stderr, metricsOut io.Writer) (*Application, error) {
	app := &Application{cfg: cfg}
	if err := app.bootstrap(stderr, metricsOut); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap(stderr, metricsOut io.Writer) error {
	cfg := app.cfg

	// 1. Logging
	logger, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return &InitError{Component: "logging", Err: err}
	}
	app.logger = logger

	// 2. Metrics
	provider, shutdown, err := telemetry.Setup(cfg.Metrics.Enabled, metricsOut, cfg.Metrics.Interval.Std())
	if err != nil {
		return &InitError{Component: "metrics", Err: err}
	}
	app.metricsShutdown = shutdown

	busOpts := []event.BusOption{
		event.WithLogger(logger.Logger),
		event.WithHandlerTimeout(cfg.Dispatch.HandlerTimeout.Std()),
		event.WithMonitorGuard(cfg.Dispatch.MonitorGuard),
		event.WithAsyncWorkerCount(cfg.Dispatch.AsyncWorkers),
		event.WithAsyncQueueSize(cfg.Dispatch.AsyncQueue),
	}
	if cfg.Metrics.Enabled {
		rec, err := telemetry.NewRecorder(provider.Meter(telemetry.MeterName))
		if err != nil {
			return &InitError{Component: "metrics", Err: err}
		}
		busOpts = append(busOpts, event.WithRecorder(rec))
	}

	// 3. Event bus
	app.bus = event.NewBus(busOpts...)

	// 4. Plugin manager
	managerOpts := []plugin.ManagerOption{
		plugin.WithManagerLogger(logger.Logger),
		plugin.WithParallelLoad(cfg.Plugins.Parallel),
		plugin.WithHostOptions(plugin.WithHostExecutionTimeout(cfg.Plugins.ExecutionTimeout.Std())),
	}
	if len(cfg.Plugins.Paths) > 0 {
		managerOpts = append(managerOpts, plugin.WithManagerPaths(cfg.Plugins.Paths...))
	}
	for name, values := range cfg.Plugins.Config {
		managerOpts = append(managerOpts, plugin.WithPluginConfig(name, values))
	}
	app.manager = plugin.NewManager(app.bus, managerOpts...)

	// 5. Hot reload
	if cfg.Plugins.Watch {
		w, err := plugin.NewWatcher(app.manager,
			plugin.WithDebounce(cfg.Plugins.Debounce.Std()),
			plugin.WithWatcherLogger(logger.Logger),
		)
		if err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
		app.watcher = w
	}

	return nil
}

// Start starts the bus, loads every plugin and starts the watcher. Plugin
// load failures are logged and kept in PluginErrors; they do not fail
// Start.
func (app *Application) Start(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := app.bus.Start(); err != nil {
		app.running.Store(false)
		return &ComponentError{Component: "bus", Action: "start", Err: err}
	}

	err := app.manager.LoadAll(ctx)
	app.mu.Lock()
	app.pluginErr = err
	app.mu.Unlock()
	if err != nil {
		app.logger.WarnContext(ctx, "some plugins failed to load", "error", err)
	}

	if app.watcher != nil {
		if err := app.watcher.Start(ctx); err != nil {
			return &ComponentError{Component: "watcher", Action: "start", Err: err}
		}
	}

	app.logger.InfoContext(ctx, "plugbus started",
		"plugins", app.manager.Count(),
		"watching", app.watcher != nil)
	return nil
}

// PluginErrors returns the plugin failures from Start.
func (app *Application) PluginErrors() error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.pluginErr
}

// Raise decodes a request into an event and dispatches it.
func (app *Application) Raise(ctx context.Context, req Request) (*event.Report, error) {
	ev, err := events.Decode(event.Kind(req.Kind), req.Data, req.Cancellable)
	if err != nil {
		return nil, err
	}
	return app.bus.Raise(ctx, ev)
}

// Shutdown stops the watcher, unloads plugins in reverse load order, stops
// the bus and flushes metrics. It is safe to call more than once.
func (app *Application) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	if app.stopped {
		app.mu.Unlock()
		return nil
	}
	app.stopped = true
	app.mu.Unlock()

	var merr *multierror.Error
	add := func(component, action string, err error) {
		if err != nil {
			merr = multierror.Append(merr, &ComponentError{Component: component, Action: action, Err: err})
		}
	}

	// 1. Stop reacting to file changes
	if app.watcher != nil {
		add("watcher", "close", app.watcher.Close())
	}

	// 2. Unload plugins
	add("plugins", "unload", app.manager.UnloadAll(ctx))

	// 3. Drain async dispatches
	if app.bus.IsRunning() {
		add("bus", "stop", app.bus.Stop(ctx))
	}
	app.running.Store(false)

	// 4. Flush metrics
	add("metrics", "shutdown", app.metricsShutdown(ctx))

	app.logger.InfoContext(ctx, "plugbus stopped")
	add("logging", "close", app.logger.Close())
	return merr.ErrorOrNil()
}

// IsRunning returns true if the application is running.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the effective configuration.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Bus returns the event bus.
func (app *Application) Bus() *event.Bus {
	return app.bus
}

// Plugins returns the plugin manager.
func (app *Application) Plugins() *plugin.Manager {
	return app.manager
}
