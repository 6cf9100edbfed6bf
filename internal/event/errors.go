package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the event package.
var (
	// ErrAlreadyRegistered is returned when the same handler is registered
	// twice by the same owner on one kind.
	ErrAlreadyRegistered = errors.New("handler already registered")

	// ErrUnsupportedOperation is returned when cancellation is requested on
	// an event kind that cannot be cancelled.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilEvent is returned when a nil event is raised.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrInvalidKind is returned when a kind is empty or malformed.
	ErrInvalidKind = errors.New("invalid event kind")

	// ErrInvalidPriority is returned for a priority outside the six tiers.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrHandlerPanic is matched by PanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrMonitorMutation is reported when a monitor handler changes the
	// cancellation state of an event.
	ErrMonitorMutation = errors.New("monitor handler changed cancellation state")

	// ErrBusNotRunning is returned by async operations on a stopped bus.
	ErrBusNotRunning = errors.New("event bus is not running")

	// ErrBusAlreadyRunning is returned when Start is called on a running bus.
	ErrBusAlreadyRunning = errors.New("event bus is already running")

	// ErrQueueFull is returned when the async queue cannot accept more events.
	ErrQueueFull = errors.New("event queue is full")
)

// HandlerError records one handler failure during a dispatch pass.
type HandlerError struct {
	// RegistrationID is the ID of the failing registration.
	RegistrationID string

	// Kind is the kind being dispatched.
	Kind Kind

	// Owner is the registration owner.
	Owner Owner

	// Priority is the registration tier.
	Priority Priority

	// Err is the underlying error. For panics it is a *PanicError.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	owner := string(e.Owner)
	if owner == "" {
		owner = "<none>"
	}
	return fmt.Sprintf("handler %s (owner %s, %s) failed on %s: %v", e.RegistrationID, owner, e.Priority, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Panicked reports whether the handler panicked.
func (e *HandlerError) Panicked() bool {
	return errors.Is(e.Err, ErrHandlerPanic)
}

// PanicError wraps a recovered panic value.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// RegistrationError reports one failed entry of a bulk registration.
type RegistrationError struct {
	// Index is the position of the entry in the input.
	Index int

	// Kind is the kind of the entry.
	Kind Kind

	// Err is the reason the entry was rejected.
	Err error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration %d (%s): %v", e.Index, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}
