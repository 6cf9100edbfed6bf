package dispatch

import (
	"context"
	"time"
)

// Call is a single handler invocation.
type Call func(ctx context.Context) error

// Result represents the outcome of a handler execution.
type Result struct {
	// Success is true if the call completed without error or panic.
	Success bool

	// Error is the error returned by the call, if any.
	Error error

	// Panicked is true if the call panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the call took.
	Duration time.Duration
}

// IsSuccess returns true if the result indicates successful execution.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// IsError returns true if the result indicates an error (not panic).
func (r Result) IsError() bool {
	return r.Error != nil && !r.Panicked
}

// IsPanic returns true if the result indicates a panic.
func (r Result) IsPanic() bool {
	return r.Panicked
}

// PanicHandler is called when a call panics. It receives the panic value
// and the stack trace.
type PanicHandler func(panicValue any, stack []byte)
