package event

import (
	"fmt"

	"github.com/dshills/plugbus/internal/event/kind"
)

// Kind identifies an event type.
type Kind = kind.Kind

// Owner names the component (usually a plugin) that registered a handler.
type Owner string

// Event is a single occurrence passed through a handler chain.
// Implementations are usually pointers so handlers can mutate them.
type Event interface {
	Kind() Kind
}

// Cancellable is implemented by events whose outcome handlers can veto.
type Cancellable interface {
	Event
	IsCancelled() bool
	SetCancelled(cancelled bool)
}

// Mapped is implemented by events that can be viewed and updated as a
// field map. Script handlers use it to read and write event data.
type Mapped interface {
	Fields() map[string]any
	ApplyFields(fields map[string]any) error
}

// Cancellation holds the cancelled flag. Embed it to make an event
// Cancellable.
type Cancellation struct {
	cancelled bool
}

// IsCancelled reports whether the event is cancelled.
func (c *Cancellation) IsCancelled() bool {
	return c.cancelled
}

// SetCancelled sets the cancelled flag.
func (c *Cancellation) SetCancelled(cancelled bool) {
	c.cancelled = cancelled
}

// IsCancellable reports whether ev supports cancellation.
func IsCancellable(ev Event) bool {
	_, ok := ev.(Cancellable)
	return ok
}

// IsCancelled reports whether ev is cancelled. Events that cannot be
// cancelled are never cancelled.
func IsCancelled(ev Event) bool {
	c, ok := ev.(Cancellable)
	return ok && c.IsCancelled()
}

// SetCancelled sets the cancelled flag on ev. It returns
// ErrUnsupportedOperation if ev is not Cancellable.
func SetCancelled(ev Event, cancelled bool) error {
	c, ok := ev.(Cancellable)
	if !ok {
		return fmt.Errorf("%w: %s events cannot be cancelled", ErrUnsupportedOperation, kindOf(ev))
	}
	c.SetCancelled(cancelled)
	return nil
}

func kindOf(ev Event) Kind {
	if ev == nil {
		return ""
	}
	return ev.Kind()
}

// Dynamic is a map-backed event for callers without a Go type for the
// kind, such as scripts and the command line.
type Dynamic struct {
	kind Kind
	Data map[string]any
}

// NewDynamic creates a non-cancellable dynamic event. A nil data map is
// replaced by an empty one.
func NewDynamic(k Kind, data map[string]any) *Dynamic {
	if data == nil {
		data = make(map[string]any)
	}
	return &Dynamic{kind: k, Data: data}
}

// Kind implements Event.
func (d *Dynamic) Kind() Kind {
	return d.kind
}

// Get returns a data field.
func (d *Dynamic) Get(key string) (any, bool) {
	v, ok := d.Data[key]
	return v, ok
}

// Set stores a data field.
func (d *Dynamic) Set(key string, value any) {
	d.Data[key] = value
}

// Fields returns the live data map.
func (d *Dynamic) Fields() map[string]any {
	return d.Data
}

// ApplyFields replaces the data map contents with fields.
func (d *Dynamic) ApplyFields(fields map[string]any) error {
	clear(d.Data)
	for k, v := range fields {
		d.Data[k] = v
	}
	return nil
}

// CancellableDynamic is a Dynamic event that can be cancelled.
type CancellableDynamic struct {
	Dynamic
	Cancellation
}

// NewCancellableDynamic creates a cancellable dynamic event.
func NewCancellableDynamic(k Kind, data map[string]any) *CancellableDynamic {
	return &CancellableDynamic{Dynamic: *NewDynamic(k, data)}
}
