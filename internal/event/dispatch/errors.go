package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrAlreadyRunning is returned when Start is called on a running pool.
	ErrAlreadyRunning = errors.New("pool is already running")

	// ErrNotRunning is returned when operations are attempted on a stopped pool.
	ErrNotRunning = errors.New("pool is not running")

	// ErrQueueFull is returned when the pool queue cannot accept more tasks.
	ErrQueueFull = errors.New("task queue is full")
)
