package event

import (
	"context"
	"errors"
	"sync"
)

// recordingHandler appends its name to a shared trace when called.
type recordingHandler struct {
	name  string
	trace *trace
	fn    func(ctx context.Context, ev Event) error
}

func (h *recordingHandler) Handle(ctx context.Context, ev Event) error {
	h.trace.add(h.name)
	if h.fn != nil {
		return h.fn(ctx, ev)
	}
	return nil
}

type trace struct {
	mu    sync.Mutex
	names []string
}

func (t *trace) add(name string) {
	t.mu.Lock()
	t.names = append(t.names, name)
	t.mu.Unlock()
}

func (t *trace) get() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func (t *trace) reset() {
	t.mu.Lock()
	t.names = nil
	t.mu.Unlock()
}

func newRecorder(tr *trace, name string) *recordingHandler {
	return &recordingHandler{name: name, trace: tr}
}

func cancelling(tr *trace, name string) *recordingHandler {
	return &recordingHandler{name: name, trace: tr, fn: func(_ context.Context, ev Event) error {
		return SetCancelled(ev, true)
	}}
}

func failing(tr *trace, name string) *recordingHandler {
	return &recordingHandler{name: name, trace: tr, fn: func(context.Context, Event) error {
		return errors.New(name + " failed")
	}}
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
