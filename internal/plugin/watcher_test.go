package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type change struct {
	name   string
	action Action
	err    error
}

// waitFor drains changes until one matches name and action.
func waitFor(t *testing.T, ch <-chan change, name string, action Action) change {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-ch:
			if c.name == name && c.action == action {
				return c
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s %s", action, name)
			return change{}
		}
	}
}

func newTestWatcher(t *testing.T, m *Manager, onChange ChangeFunc) *Watcher {
	t.Helper()
	w, err := NewWatcher(m,
		WithDebounce(50*time.Millisecond),
		WithWatcherLogger(quietLogger()),
		WithOnChange(onChange),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})
	return w
}

func startWatcher(t *testing.T, m *Manager) <-chan change {
	t.Helper()
	ch := make(chan change, 64)
	newTestWatcher(t, m, func(name string, action Action, err error) {
		ch <- change{name, action, err}
	})
	return ch
}

func TestWatcher_LoadReloadUnload(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "alpha", "name: alpha\n", chainSource("a1"))

	m, bus := newTestManager(t, base)
	mustLoadAll(t, m)
	ch := startWatcher(t, m)

	writeFile(t, filepath.Join(base, "alpha"), DefaultMain, chainSource("a2"))
	if c := waitFor(t, ch, "alpha", ActionReload); c.err != nil {
		t.Fatal(c.err)
	}
	if n := bus.HandlerListFor("test.trace").Len(); n != 1 {
		t.Errorf("handlers after reload = %d, want 1", n)
	}

	writePlugin(t, base, "beta", "name: beta\n", chainSource("b"))
	if c := waitFor(t, ch, "beta", ActionLoad); c.err != nil {
		t.Fatal(c.err)
	}
	if _, ok := m.Get("beta"); !ok {
		t.Error("beta not loaded")
	}

	if err := os.RemoveAll(filepath.Join(base, "beta")); err != nil {
		t.Fatal(err)
	}
	if c := waitFor(t, ch, "beta", ActionUnload); c.err != nil {
		t.Fatal(c.err)
	}
	if _, ok := m.Get("beta"); ok {
		t.Error("beta still loaded")
	}
	if n := bus.HandlerListFor("test.trace").Len(); n != 1 {
		t.Errorf("handlers after unload = %d, want 1", n)
	}
}

func TestWatcher_SingleFilePlugin(t *testing.T) {
	base := t.TempDir()
	m, _ := newTestManager(t, base)
	ch := startWatcher(t, m)

	writeFile(t, base, "gamma.lua", chainSource("g"))
	if c := waitFor(t, ch, "gamma", ActionLoad); c.err != nil {
		t.Fatal(c.err)
	}

	h, ok := m.Get("gamma")
	if !ok {
		t.Fatal("gamma not loaded")
	}
	if h.State() != StateActive {
		t.Errorf("State() = %s, want active", h.State())
	}
}

func TestWatcher_ReportsLoadErrors(t *testing.T) {
	base := t.TempDir()
	m, _ := newTestManager(t, base)
	ch := startWatcher(t, m)

	writeFile(t, base, "broken.lua", `error("boom")`)
	c := waitFor(t, ch, "broken", ActionLoad)
	if c.err == nil || !strings.Contains(c.err.Error(), "boom") {
		t.Errorf("load error = %v, want boom", c.err)
	}
}

func TestWatcher_CloseWaitsForRunningAction(t *testing.T) {
	base := t.TempDir()
	m, _ := newTestManager(t, base)

	entered := make(chan struct{}, 1)
	hold := make(chan struct{})
	w := newTestWatcher(t, m, func(string, Action, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-hold
	})

	writeFile(t, base, "slow.lua", chainSource("slow"))
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		close(hold)
		t.Fatal("watcher never acted on the new plugin")
	}

	closed := make(chan error, 1)
	go func() { closed <- w.Close() }()
	select {
	case err := <-closed:
		close(hold)
		t.Fatalf("Close() returned %v while an action was running", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(hold)
	select {
	case err := <-closed:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return after the action finished")
	}
}

func TestWatcher_NoActionAfterClose(t *testing.T) {
	base := t.TempDir()
	m, _ := newTestManager(t, base)
	w, err := NewWatcher(m, WithWatcherLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	entry := writeFile(t, base, "late.lua", chainSource("late"))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// A timer that fired before Close finds the watcher closed.
	w.apply(context.Background(), entry)
	if _, ok := m.Get("late"); ok {
		t.Error("plugin loaded after Close")
	}
}

func TestWatcher_EntryFor(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "alpha", "", "")
	writeFile(t, base, "readme.txt", "")

	m, _ := newTestManager(t, base)
	w, err := NewWatcher(m)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	tests := []struct {
		path  string
		entry string
		ok    bool
	}{
		{filepath.Join(base, "alpha", "init.lua"), filepath.Join(base, "alpha"), true},
		{filepath.Join(base, "alpha", "lib", "util.lua"), filepath.Join(base, "alpha"), true},
		{filepath.Join(base, "alpha"), filepath.Join(base, "alpha"), true},
		{filepath.Join(base, "solo.lua"), filepath.Join(base, "solo.lua"), true},
		{filepath.Join(base, "readme.txt"), "", false},
		{filepath.Join(base, ".git", "HEAD"), "", false},
		{base, "", false},
		{filepath.Join(t.TempDir(), "elsewhere.lua"), "", false},
	}
	for _, tt := range tests {
		entry, ok := w.entryFor(tt.path)
		if ok != tt.ok || entry != tt.entry {
			t.Errorf("entryFor(%s) = %q, %v, want %q, %v", tt.path, entry, ok, tt.entry, tt.ok)
		}
	}
}

func TestWatcher_StartAfterClose(t *testing.T) {
	m, _ := newTestManager(t, t.TempDir())
	w, err := NewWatcher(m)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Start() after Close error = %v, want ErrWatcherClosed", err)
	}
}
