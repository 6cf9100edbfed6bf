package event

import (
	"time"

	"github.com/hashicorp/go-multierror"
)

// Report is the outcome of one dispatch pass.
type Report struct {
	// ID uniquely identifies the pass.
	ID string

	// Kind is the dispatched kind.
	Kind Kind

	// Event is the event after every handler ran.
	Event Event

	// Invoked counts handlers that were called, including failed ones.
	Invoked int

	// Skipped counts handlers passed over because the event was cancelled
	// and they ignore cancelled events.
	Skipped int

	// Failures lists handler failures in the order they happened.
	Failures []*HandlerError

	// Cancelled is the final cancellation state.
	Cancelled bool

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// OK reports whether no handler failed.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

// Err returns all failures combined, or nil.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, f := range r.Failures {
		merr = multierror.Append(merr, f)
	}
	return merr.ErrorOrNil()
}
