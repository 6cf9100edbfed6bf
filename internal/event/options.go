package event

import (
	"log/slog"
	"time"
)

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	// registry is shared with other buses when set.
	registry *Registry

	// asyncQueueSize is the RaiseAsync queue size.
	asyncQueueSize int

	// asyncWorkerCount is the number of RaiseAsync workers.
	asyncWorkerCount int

	// handlerTimeout bounds each handler call through its context.
	handlerTimeout time.Duration

	// monitorGuard reverts cancellation changes by monitor handlers.
	monitorGuard bool

	logger   *slog.Logger
	recorder Recorder
}

func defaultBusConfig() busConfig {
	return busConfig{
		asyncQueueSize:   1024,
		asyncWorkerCount: 4,
		logger:           slog.Default(),
	}
}

// WithRegistry makes the bus use r instead of a private registry.
func WithRegistry(r *Registry) BusOption {
	return func(c *busConfig) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithAsyncQueueSize sets the RaiseAsync queue size.
func WithAsyncQueueSize(size int) BusOption {
	return func(c *busConfig) {
		if size > 0 {
			c.asyncQueueSize = size
		}
	}
}

// WithAsyncWorkerCount sets the number of RaiseAsync workers.
func WithAsyncWorkerCount(count int) BusOption {
	return func(c *busConfig) {
		if count > 0 {
			c.asyncWorkerCount = count
		}
	}
}

// WithHandlerTimeout sets a per-handler context deadline. Zero disables it.
func WithHandlerTimeout(timeout time.Duration) BusOption {
	return func(c *busConfig) {
		c.handlerTimeout = timeout
	}
}

// WithMonitorGuard enables enforcement of observe-only monitor handlers.
func WithMonitorGuard(enabled bool) BusOption {
	return func(c *busConfig) {
		c.monitorGuard = enabled
	}
}

// WithLogger sets the bus logger.
func WithLogger(l *slog.Logger) BusOption {
	return func(c *busConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder sets a dispatch measurement sink.
func WithRecorder(r Recorder) BusOption {
	return func(c *busConfig) {
		c.recorder = r
	}
}
