package api

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dshills/plugbus/internal/event"
	plua "github.com/dshills/plugbus/internal/plugin/lua"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBus() *event.Bus {
	return event.NewBus(event.WithLogger(quietLogger()))
}

// plugin is a Lua state with the standard modules installed.
type plugin struct {
	state  *plua.State
	events *EventsModule
}

func newPlugin(t *testing.T, bus *event.Bus, owner string) *plugin {
	t.Helper()
	return newPluginOn(t, bus, owner, nil)
}

// newPluginOn creates a plugin running under rt. A nil rt gives the
// plugin a runtime of its own.
func newPluginOn(t *testing.T, bus *event.Bus, owner string, rt *plua.Runtime) *plugin {
	t.Helper()

	state := plua.NewState(plua.WithExecutionTimeout(2*time.Second), plua.WithRuntime(rt))
	t.Cleanup(func() { _ = state.Close() })

	reg, ev, err := Standard(&Context{
		Bus:    bus,
		Owner:  event.Owner(owner),
		State:  state,
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("Standard() error = %v", err)
	}
	if err := state.Do(context.Background(), reg.InjectAll); err != nil {
		t.Fatalf("InjectAll() error = %v", err)
	}

	return &plugin{state: state, events: ev}
}

func (p *plugin) run(t *testing.T, code string) {
	t.Helper()
	if err := p.state.DoString(context.Background(), code); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
}

func raise(t *testing.T, bus *event.Bus, ev event.Event) *event.Report {
	t.Helper()
	report, err := bus.Raise(context.Background(), ev)
	if err != nil {
		t.Fatalf("Raise(%s) error = %v", ev.Kind(), err)
	}
	return report
}
