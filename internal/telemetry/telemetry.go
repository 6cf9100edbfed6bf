// Package telemetry records dispatch metrics with OpenTelemetry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/dshills/plugbus/internal/event"
)

// MeterName is the instrumentation scope of plugbus metrics.
const MeterName = "github.com/dshills/plugbus"

// ServiceName is reported as the service.name resource attribute.
const ServiceName = "plugbus"

// Handler outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// Recorder implements event.Recorder with OpenTelemetry instruments.
type Recorder struct {
	dispatches  metric.Int64Counter
	cancelled   metric.Int64Counter
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
}

var _ event.Recorder = (*Recorder)(nil)

// NewRecorder creates the plugbus instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	var (
		r    Recorder
		err  error
		errs []error
	)

	r.dispatches, err = meter.Int64Counter("plugbus.dispatches",
		metric.WithDescription("Dispatch passes"))
	errs = append(errs, err)

	r.cancelled, err = meter.Int64Counter("plugbus.dispatch.cancelled",
		metric.WithDescription("Dispatch passes that ended cancelled"))
	errs = append(errs, err)

	r.invocations, err = meter.Int64Counter("plugbus.handler.invocations",
		metric.WithDescription("Handler calls by outcome"))
	errs = append(errs, err)

	r.duration, err = meter.Float64Histogram("plugbus.handler.duration",
		metric.WithDescription("Handler call duration"),
		metric.WithUnit("ms"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}
	return &r, nil
}

// RecordHandler implements event.Recorder.
func (r *Recorder) RecordHandler(ctx context.Context, reg *event.Registration, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("kind", string(reg.Kind())),
		attribute.String("owner", string(reg.Owner())),
		attribute.String("outcome", outcome(err)),
	)
	r.invocations.Add(ctx, 1, attrs)
	r.duration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
}

// RecordDispatch implements event.Recorder.
func (r *Recorder) RecordDispatch(ctx context.Context, rep *event.Report) {
	kind := metric.WithAttributes(attribute.String("kind", string(rep.Kind)))
	r.dispatches.Add(ctx, 1, kind)
	if rep.Cancelled {
		r.cancelled.Add(ctx, 1, kind)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, event.ErrHandlerPanic):
		return OutcomePanic
	default:
		return OutcomeError
	}
}

// Setup returns a meter provider that writes metrics to w every interval.
// When enabled is false it returns a no-op provider. The shutdown function
// flushes pending metrics.
func Setup(enabled bool, w io.Writer, interval time.Duration) (metric.MeterProvider, func(context.Context) error, error) {
	if !enabled {
		return noop.NewMeterProvider(), func(context.Context) error { return nil }, nil
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("create metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	return provider, provider.Shutdown, nil
}
