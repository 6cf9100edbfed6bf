package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Executor runs handler calls with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler sets a callback invoked after a call panics.
func WithPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs call and returns the result. Panics are recovered and
// reported in the result.
func (e *Executor) Execute(ctx context.Context, call Call) (result Result) {
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Success = false
			result.Error = nil
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			if e.panicHandler != nil {
				func() {
					defer func() { _ = recover() }()
					e.panicHandler(r, stack)
				}()
			}
		}
	}()

	if err := call(ctx); err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}

// ExecuteWithTimeout runs call with a derived context that expires after
// timeout. A non-positive timeout behaves like Execute.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, call Call, timeout time.Duration) Result {
	if timeout <= 0 {
		return e.Execute(ctx, call)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.Execute(ctx, call)
}
