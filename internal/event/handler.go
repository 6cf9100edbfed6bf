package event

import (
	"context"
	"reflect"
)

// Handler reacts to events of the kinds it is registered for.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler. Function values cannot be
// compared, so a HandlerFunc can be removed only through its
// Registration or its owner. Use Func when identity matters.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type funcHandler struct {
	fn HandlerFunc
}

func (h *funcHandler) Handle(ctx context.Context, ev Event) error {
	return h.fn(ctx, ev)
}

// Func wraps fn in a Handler with pointer identity, so the returned value
// can be passed to Unregister and is detected as a duplicate.
func Func(fn func(ctx context.Context, ev Event) error) Handler {
	return &funcHandler{fn: fn}
}

type typedHandler[E Event] struct {
	fn func(ctx context.Context, ev E) error
}

func (h *typedHandler[E]) Handle(ctx context.Context, ev Event) error {
	if e, ok := ev.(E); ok {
		return h.fn(ctx, e)
	}
	return nil
}

// On returns a Handler that is called only for events of type E. Events
// of any other type are ignored.
func On[E Event](fn func(ctx context.Context, ev E) error) Handler {
	return &typedHandler[E]{fn: fn}
}

// sameHandler reports whether a and b are the same handler. Values of
// non-comparable types are never equal.
func sameHandler(a, b Handler) (same bool) {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
