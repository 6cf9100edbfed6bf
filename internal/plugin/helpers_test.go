package plugin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dshills/plugbus/internal/event"
	"github.com/dshills/plugbus/internal/event/events"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBus() *event.Bus {
	return event.NewBus(event.WithLogger(quietLogger()))
}

// writeFile writes content to dir/name, creating parent directories.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// writePlugin creates a directory plugin with a manifest and init.lua.
func writePlugin(t *testing.T, base, name, manifest, code string) string {
	t.Helper()
	dir := filepath.Join(base, name)
	if manifest != "" {
		writeFile(t, dir, ManifestFile, manifest)
	}
	writeFile(t, dir, DefaultMain, code)
	return dir
}

func infoNames(infos []*Info) []string {
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

func hostNames(hosts []*Host) []string {
	names := make([]string, len(hosts))
	for i, h := range hosts {
		names[i] = h.Name()
	}
	return names
}

// chainSource registers a handler that appends the plugin name to
// ev.data.trace.
func chainSource(name string) string {
	return fmt.Sprintf(`
function activate()
	events.on("test.trace", function(ev)
		ev.data.trace = (ev.data.trace or "") .. "%s;"
	end)
end
`, name)
}

func newTestManager(t *testing.T, base string, opts ...ManagerOption) (*Manager, *event.Bus) {
	t.Helper()
	bus := newBus()
	opts = append([]ManagerOption{WithManagerPaths(base), WithManagerLogger(quietLogger())}, opts...)
	return NewManager(bus, opts...), bus
}

// lifecycleLog records plugin.enable and plugin.disable events.
type lifecycleLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *lifecycleLog) attach(t *testing.T, bus *event.Bus) {
	t.Helper()
	_, err := bus.Register(events.KindPluginEnable, event.On(func(_ context.Context, ev *events.PluginEnable) error {
		l.add("enable " + ev.Name)
		return nil
	}), event.PriorityMonitor, false, "test")
	if err != nil {
		t.Fatal(err)
	}
	_, err = bus.Register(events.KindPluginDisable, event.On(func(_ context.Context, ev *events.PluginDisable) error {
		l.add(fmt.Sprintf("disable %s (%s)", ev.Name, ev.Reason))
		return nil
	}), event.PriorityMonitor, false, "test")
	if err != nil {
		t.Fatal(err)
	}
}

func (l *lifecycleLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *lifecycleLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}
