package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/dshills/plugbus/internal/event/dispatch"
)

// Definition describes one handler for bulk registration.
type Definition struct {
	Kind            Kind
	Handler         Handler
	Priority        Priority
	IgnoreCancelled bool
}

// Bus ties a Registry to a Dispatcher and adds asynchronous raising.
// Raise works whether or not the bus is started; RaiseAsync needs Start.
type Bus struct {
	registry   *Registry
	dispatcher *Dispatcher
	pool       *dispatch.Pool
	logger     *slog.Logger
}

// NewBus creates a bus.
func NewBus(opts ...BusOption) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}

	logger := cfg.logger
	return &Bus{
		registry: cfg.registry,
		dispatcher: NewDispatcher(
			WithDispatchLogger(logger),
			WithDispatchRecorder(cfg.recorder),
			WithDispatchMonitorGuard(cfg.monitorGuard),
			WithDispatchTimeout(cfg.handlerTimeout),
		),
		pool: dispatch.NewPool(
			dispatch.WithQueueSize(cfg.asyncQueueSize),
			dispatch.WithWorkerCount(cfg.asyncWorkerCount),
			dispatch.WithPoolPanicHandler(func(v any, stack []byte) {
				logger.Error("async dispatch panicked", slog.Any("panic", v), slog.String("stack", string(stack)))
			}),
		),
		logger: logger,
	}
}

// Registry returns the bus registry.
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Dispatcher returns the bus dispatcher.
func (b *Bus) Dispatcher() *Dispatcher {
	return b.dispatcher
}

// HandlerListFor returns the list for k.
func (b *Bus) HandlerListFor(k Kind) *HandlerList {
	return b.registry.HandlerListFor(k)
}

// Register registers h for k.
func (b *Bus) Register(k Kind, h Handler, p Priority, ignoreCancelled bool, owner Owner) (*Registration, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, k)
	}
	return b.registry.HandlerListFor(k).Register(h, p, ignoreCancelled, owner)
}

// RegisterAll registers every definition for owner. Entries are
// independent: valid ones stay registered even when others fail. The
// returned error, if any, is a *multierror.Error of *RegistrationError.
func (b *Bus) RegisterAll(owner Owner, defs []Definition) ([]*Registration, error) {
	regs := make([]*Registration, 0, len(defs))
	var merr *multierror.Error

	for i, def := range defs {
		reg, err := b.Register(def.Kind, def.Handler, def.Priority, def.IgnoreCancelled, owner)
		if err != nil {
			merr = multierror.Append(merr, &RegistrationError{Index: i, Kind: def.Kind, Err: err})
			continue
		}
		regs = append(regs, reg)
	}

	if err := merr.ErrorOrNil(); err != nil {
		b.logger.Warn("partial registration",
			slog.String("owner", string(owner)),
			slog.Int("registered", len(regs)),
			slog.Int("failed", len(merr.Errors)))
		return regs, err
	}
	return regs, nil
}

// Unregister removes h from every kind.
func (b *Bus) Unregister(h Handler) int {
	return b.registry.Unregister(h)
}

// Remove removes a single registration.
func (b *Bus) Remove(reg *Registration) bool {
	if reg == nil {
		return false
	}
	l, ok := b.registry.Lookup(reg.kind)
	return ok && l.Remove(reg)
}

// UnregisterOwner removes everything owner registered.
func (b *Bus) UnregisterOwner(owner Owner) int {
	n := b.registry.UnregisterOwner(owner)
	if n > 0 {
		b.logger.Debug("unregistered owner", slog.String("owner", string(owner)), slog.Int("handlers", n))
	}
	return n
}

// UnregisterAll removes every registration.
func (b *Bus) UnregisterAll() int {
	return b.registry.UnregisterAll()
}

func validateEvent(ev Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	if k := ev.Kind(); !k.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, k)
	}
	return nil
}

// Raise dispatches ev synchronously and returns the pass report. Handler
// failures are in the report, not in the returned error.
func (b *Bus) Raise(ctx context.Context, ev Event) (*Report, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}
	list, _ := b.registry.Lookup(ev.Kind())
	return b.dispatcher.Dispatch(ctx, ev, list), nil
}

// RaiseAsync queues ev for dispatch on a worker. done, if not nil, is
// called with the report from the worker goroutine. Cancelling ctx after
// RaiseAsync returns does not cancel the dispatch.
func (b *Bus) RaiseAsync(ctx context.Context, ev Event, done func(*Report)) error {
	if err := validateEvent(ev); err != nil {
		return err
	}

	err := b.pool.Submit(context.WithoutCancel(ctx), func(ctx context.Context) {
		list, _ := b.registry.Lookup(ev.Kind())
		report := b.dispatcher.Dispatch(ctx, ev, list)
		if done != nil {
			done(report)
		}
	})
	switch {
	case errors.Is(err, dispatch.ErrNotRunning):
		return ErrBusNotRunning
	case errors.Is(err, dispatch.ErrQueueFull):
		return ErrQueueFull
	}
	return err
}

// Start starts the async workers.
func (b *Bus) Start() error {
	if err := b.pool.Start(); err != nil {
		if errors.Is(err, dispatch.ErrAlreadyRunning) {
			return ErrBusAlreadyRunning
		}
		return err
	}
	return nil
}

// Stop drains queued async events, waiting until ctx ends.
func (b *Bus) Stop(ctx context.Context) error {
	if err := b.pool.Stop(ctx); err != nil {
		if errors.Is(err, dispatch.ErrNotRunning) {
			return ErrBusNotRunning
		}
		return err
	}
	return nil
}

// IsRunning reports whether async workers are running.
func (b *Bus) IsRunning() bool {
	return b.pool.IsRunning()
}

// Stats contains bus statistics.
type Stats struct {
	DispatcherStats

	// Kinds is the number of kinds with a handler list.
	Kinds int

	// Registrations is the total number of registrations.
	Registrations int

	// AsyncQueued is the number of events waiting for a worker.
	AsyncQueued int

	// AsyncDropped is the number of events rejected with ErrQueueFull.
	AsyncDropped uint64
}

// Stats returns bus statistics.
func (b *Bus) Stats() Stats {
	ps := b.pool.Stats()
	return Stats{
		DispatcherStats: b.dispatcher.Stats(),
		Kinds:           len(b.registry.Kinds()),
		Registrations:   b.registry.Count(),
		AsyncQueued:     ps.QueueDepth,
		AsyncDropped:    ps.Dropped,
	}
}
