package app

import (
	"errors"

	"github.com/dshills/plugbus/internal/event"
)

// Request asks for one event to be raised. It is the JSON-lines input
// format of serve.
type Request struct {
	Kind        string         `json:"kind"`
	Data        map[string]any `json:"data,omitempty"`
	Cancellable bool           `json:"cancellable,omitempty"`
}

// ReportView is the JSON form of an event.Report.
type ReportView struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Cancelled  bool           `json:"cancelled"`
	Invoked    int            `json:"invoked"`
	Skipped    int            `json:"skipped"`
	DurationMS float64        `json:"duration_ms"`
	Data       map[string]any `json:"data,omitempty"`
	Failures   []FailureView  `json:"failures,omitempty"`
}

// FailureView is the JSON form of an event.HandlerError.
type FailureView struct {
	Registration string `json:"registration"`
	Owner        string `json:"owner"`
	Priority     string `json:"priority"`
	Error        string `json:"error"`
	Panicked     bool   `json:"panicked,omitempty"`
}

// NewReportView converts a report. Data holds the event fields after
// every handler ran, when the event exposes them.
func NewReportView(r *event.Report) ReportView {
	v := ReportView{
		ID:         r.ID,
		Kind:       string(r.Kind),
		Cancelled:  r.Cancelled,
		Invoked:    r.Invoked,
		Skipped:    r.Skipped,
		DurationMS: float64(r.Duration.Microseconds()) / 1000,
	}
	if m, ok := r.Event.(event.Mapped); ok {
		v.Data = m.Fields()
	}
	for _, f := range r.Failures {
		v.Failures = append(v.Failures, FailureView{
			Registration: f.RegistrationID,
			Owner:        string(f.Owner),
			Priority:     f.Priority.String(),
			Error:        f.Err.Error(),
			Panicked:     errors.Is(f.Err, event.ErrHandlerPanic),
		})
	}
	return v
}
