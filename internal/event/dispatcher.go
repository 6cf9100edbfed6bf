package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/plugbus/internal/event/dispatch"
)

// Recorder receives dispatch measurements.
type Recorder interface {
	// RecordHandler is called after each handler invocation. err is nil on
	// success.
	RecordHandler(ctx context.Context, reg *Registration, d time.Duration, err error)

	// RecordDispatch is called once per pass.
	RecordDispatch(ctx context.Context, r *Report)
}

// Dispatcher walks a HandlerList for one event.
type Dispatcher struct {
	executor       *dispatch.Executor
	logger         *slog.Logger
	recorder       Recorder
	monitorGuard   bool
	handlerTimeout time.Duration

	dispatches      atomic.Uint64
	handlersInvoked atomic.Uint64
	handlersSkipped atomic.Uint64
	handlerErrors   atomic.Uint64
	handlerPanics   atomic.Uint64
	cancelled       atomic.Uint64
	totalTimeNs     atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchLogger sets the logger used to report handler failures.
func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithDispatchRecorder sets a measurement sink.
func WithDispatchRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// WithDispatchMonitorGuard makes the dispatcher undo cancellation changes
// made by PriorityMonitor handlers and report them as failures.
func WithDispatchMonitorGuard(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.monitorGuard = enabled
	}
}

// WithDispatchTimeout gives each handler a context deadline.
func WithDispatchTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.handlerTimeout = timeout
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		executor: dispatch.NewExecutor(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch calls every handler in list for ev, in snapshot order.
//
// A handler is skipped only when the event is cancelled at the moment its
// turn comes and it was registered with ignoreCancelled. Handler errors
// and panics are collected in the report and never stop the pass. ctx is
// passed to handlers but does not end the pass early.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event, list *HandlerList) *Report {
	start := time.Now()
	report := &Report{
		ID:    uuid.New().String(),
		Kind:  kindOf(ev),
		Event: ev,
	}

	var regs []*Registration
	if list != nil {
		regs = list.snapshot()
	}

	for _, reg := range regs {
		if reg.skips(ev) {
			report.Skipped++
			continue
		}
		report.Invoked++

		guard := d.monitorGuard && reg.priority == PriorityMonitor
		before := IsCancelled(ev)

		res := d.executor.ExecuteWithTimeout(ctx, func(ctx context.Context) error {
			return reg.handler.Handle(ctx, ev)
		}, d.handlerTimeout)

		var err error
		switch {
		case res.Panicked:
			d.handlerPanics.Add(1)
			err = &PanicError{Value: res.PanicValue, Stack: string(res.PanicStack)}
		case res.Error != nil:
			d.handlerErrors.Add(1)
			err = res.Error
		}
		if err != nil {
			d.fail(ctx, report, reg, err)
		}

		if guard && IsCancelled(ev) != before {
			_ = SetCancelled(ev, before)
			d.handlerErrors.Add(1)
			d.fail(ctx, report, reg, fmt.Errorf("%w: %t -> %t", ErrMonitorMutation, before, !before))
		}

		if d.recorder != nil {
			d.recorder.RecordHandler(ctx, reg, res.Duration, err)
		}
	}

	report.Cancelled = IsCancelled(ev)
	report.Duration = time.Since(start)

	d.dispatches.Add(1)
	d.handlersInvoked.Add(uint64(report.Invoked))
	d.handlersSkipped.Add(uint64(report.Skipped))
	d.totalTimeNs.Add(report.Duration.Nanoseconds())
	if report.Cancelled {
		d.cancelled.Add(1)
	}
	if d.recorder != nil {
		d.recorder.RecordDispatch(ctx, report)
	}
	return report
}

func (d *Dispatcher) fail(ctx context.Context, report *Report, reg *Registration, err error) {
	herr := &HandlerError{
		RegistrationID: reg.id,
		Kind:           reg.kind,
		Owner:          reg.owner,
		Priority:       reg.priority,
		Err:            err,
	}
	report.Failures = append(report.Failures, herr)

	attrs := []any{
		slog.String("kind", string(reg.kind)),
		slog.String("owner", string(reg.owner)),
		slog.String("priority", reg.priority.String()),
		slog.String("registration", reg.id),
		slog.Any("error", err),
	}
	if pe, ok := err.(*PanicError); ok {
		d.logger.ErrorContext(ctx, "event handler panicked", attrs...)
		d.logger.DebugContext(ctx, "handler panic stack", slog.String("registration", reg.id), slog.String("stack", pe.Stack))
		return
	}
	d.logger.ErrorContext(ctx, "event handler failed", attrs...)
}

// DispatcherStats contains dispatcher counters.
type DispatcherStats struct {
	Dispatches      uint64
	HandlersInvoked uint64
	HandlersSkipped uint64
	HandlerErrors   uint64
	HandlerPanics   uint64
	Cancelled       uint64
	AvgDispatchTime time.Duration
}

// Stats returns dispatcher counters.
func (d *Dispatcher) Stats() DispatcherStats {
	n := d.dispatches.Load()
	var avg time.Duration
	if n > 0 {
		avg = time.Duration(d.totalTimeNs.Load() / int64(n))
	}
	return DispatcherStats{
		Dispatches:      n,
		HandlersInvoked: d.handlersInvoked.Load(),
		HandlersSkipped: d.handlersSkipped.Load(),
		HandlerErrors:   d.handlerErrors.Load(),
		HandlerPanics:   d.handlerPanics.Load(),
		Cancelled:       d.cancelled.Load(),
		AvgDispatchTime: avg,
	}
}
