package plugin

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/plugbus/internal/event"
)

func mustLoadAll(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
}

func TestManager_LoadAllDependencyOrder(t *testing.T) {
	for _, parallel := range []int{1, 4} {
		t.Run(fmt.Sprintf("parallel=%d", parallel), func(t *testing.T) {
			base := t.TempDir()
			writePlugin(t, base, "core", "name: core\n", chainSource("core"))
			writePlugin(t, base, "economy", "name: economy\ndepend: [core]\n", chainSource("economy"))
			writePlugin(t, base, "shop", "name: shop\ndepend: [economy]\nsoftdepend: [extras, chat]\n", chainSource("shop"))
			writePlugin(t, base, "chat", "name: chat\n", chainSource("chat"))

			m, bus := newTestManager(t, base, WithParallelLoad(parallel))
			var log lifecycleLog
			log.attach(t, bus)

			mustLoadAll(t, m)
			if n := m.Count(); n != 4 {
				t.Fatalf("Count() = %d, want 4", n)
			}

			// Dependencies come before their dependents in load order.
			pos := make(map[string]int)
			for i, n := range hostNames(m.List()) {
				pos[n] = i
			}
			for _, pair := range [][2]string{{"core", "economy"}, {"economy", "shop"}, {"chat", "shop"}} {
				if pos[pair[0]] >= pos[pair[1]] {
					t.Errorf("%s loaded after %s: %v", pair[0], pair[1], hostNames(m.List()))
				}
			}
			if n := len(log.get()); n != 4 {
				t.Errorf("lifecycle events = %v, want 4 enables", log.get())
			}

			// Every plugin's handler ran once.
			ev := event.NewDynamic("test.trace", nil)
			if _, err := bus.Raise(context.Background(), ev); err != nil {
				t.Fatal(err)
			}
			trace, _ := ev.Data["trace"].(string)
			if len(trace) != len("core;economy;shop;chat;") {
				t.Errorf("trace = %q", trace)
			}
		})
	}
}

func TestManager_LoadAllPartialFailure(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "good", "name: good\n", chainSource("good"))
	writePlugin(t, base, "broken", "name: broken\n", `error("syntax is fine, runtime is not")`)
	writePlugin(t, base, "needs-broken", "name: needs-broken\ndepend: [broken]\n", "")
	writePlugin(t, base, "orphan", "name: orphan\ndepend: [missing]\n", "")
	writePlugin(t, base, "ping", "name: ping\ndepend: [pong]\n", "")
	writePlugin(t, base, "pong", "name: pong\ndepend: [ping]\n", "")
	writePlugin(t, base, "Bad", "name: Bad\n", "")

	m, _ := newTestManager(t, base)
	err := m.LoadAll(context.Background())
	if err == nil {
		t.Fatal("LoadAll() should report failures")
	}
	for _, want := range []error{ErrDependencyNotFound, ErrCyclicDependency, ErrInvalidName} {
		if !errors.Is(err, want) {
			t.Errorf("LoadAll() error does not wrap %v: %v", want, err)
		}
	}
	if !strings.Contains(err.Error(), "runtime is not") {
		t.Errorf("LoadAll() error misses the runtime failure: %v", err)
	}

	if got := hostNames(m.List()); !slices.Equal(got, []string{"good"}) {
		t.Errorf("List() = %v, want [good]", got)
	}
	if _, ok := m.Get("needs-broken"); ok {
		t.Error("needs-broken was loaded")
	}

	if err := m.Failure("good"); err != nil {
		t.Errorf("Failure(good) = %v", err)
	}
	failures := []struct {
		name string
		want error
	}{
		{"needs-broken", ErrDependencyNotFound},
		{"orphan", ErrDependencyNotFound},
		{"ping", ErrCyclicDependency},
		{"pong", ErrCyclicDependency},
		{"Bad", ErrInvalidName},
	}
	for _, f := range failures {
		if err := m.Failure(f.name); !errors.Is(err, f.want) {
			t.Errorf("Failure(%s) = %v, want %v", f.name, err, f.want)
		}
	}
	if err := m.Failure("broken"); err == nil || !strings.Contains(err.Error(), "runtime is not") {
		t.Errorf("Failure(broken) = %v", err)
	}

	// A fixed plugin loads and clears its failure.
	writePlugin(t, base, "broken", "name: broken\n", "")
	if _, err := m.Reload(context.Background(), "broken"); err != nil {
		t.Fatal(err)
	}
	if err := m.Failure("broken"); err != nil {
		t.Errorf("Failure(broken) after fix = %v", err)
	}
}

func TestManager_LoadRequiresDependency(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "core", "name: core\n", "")
	writePlugin(t, base, "addon", "name: addon\ndepend: [core]\n", "")

	m, _ := newTestManager(t, base)
	ctx := context.Background()

	if _, err := m.Load(ctx, "addon"); !errors.Is(err, ErrDependencyNotFound) {
		t.Errorf("Load(addon) before core error = %v", err)
	}
	if _, err := m.Load(ctx, "core"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(ctx, "core"); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("second Load(core) error = %v", err)
	}

	h, err := m.Load(ctx, "addon")
	if err != nil {
		t.Fatal(err)
	}
	if h.State() != StateActive {
		t.Errorf("addon State() = %s", h.State())
	}

	if _, err := m.Load(ctx, "ghost"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Load(ghost) error = %v", err)
	}
}

func TestManager_UnloadRemovesHandlers(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "core", "name: core\nversion: 2.0.0\n", chainSource("core"))

	m, bus := newTestManager(t, base)
	var log lifecycleLog
	log.attach(t, bus)
	ctx := context.Background()

	if _, err := m.Load(ctx, "core"); err != nil {
		t.Fatal(err)
	}
	if n := bus.HandlerListFor("test.trace").Len(); n != 1 {
		t.Fatalf("handlers after Load = %d, want 1", n)
	}

	if err := m.Unload(ctx, "core"); err != nil {
		t.Fatal(err)
	}
	if n := bus.HandlerListFor("test.trace").Len(); n != 0 {
		t.Errorf("handlers after Unload = %d, want 0", n)
	}
	if want := []string{"enable core", "disable core (unloaded)"}; !slices.Equal(log.get(), want) {
		t.Errorf("lifecycle = %v, want %v", log.get(), want)
	}

	if err := m.Unload(ctx, "core"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("second Unload() error = %v", err)
	}
}

func TestManager_UnloadAllReverseOrder(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "a", "name: a\n", "")
	writePlugin(t, base, "b", "name: b\ndepend: [a]\n", "")
	writePlugin(t, base, "c", "name: c\ndepend: [b]\n", "")

	m, bus := newTestManager(t, base)
	var log lifecycleLog
	log.attach(t, bus)

	mustLoadAll(t, m)
	if err := m.UnloadAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"enable a", "enable b", "enable c",
		"disable c (shutdown)", "disable b (shutdown)", "disable a (shutdown)",
	}
	if got := log.get(); !slices.Equal(got, want) {
		t.Errorf("lifecycle = %v, want %v", got, want)
	}
	if n := m.Count(); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

func TestManager_Reload(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "core", "name: core\n", chainSource("v1"))

	m, bus := newTestManager(t, base)
	ctx := context.Background()
	if _, err := m.Load(ctx, "core"); err != nil {
		t.Fatal(err)
	}

	writePlugin(t, base, "core", "name: core\n", chainSource("v2"))
	h, err := m.Reload(ctx, "core")
	if err != nil {
		t.Fatal(err)
	}
	if h.State() != StateActive {
		t.Errorf("State() = %s, want active", h.State())
	}

	ev := event.NewDynamic("test.trace", nil)
	if _, err := bus.Raise(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if ev.Data["trace"] != "v2;" {
		t.Errorf("trace = %v, want v2;", ev.Data["trace"])
	}
}

func TestManager_WithoutAutoActivate(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "core", "name: core\n", chainSource("core"))

	m, bus := newTestManager(t, base, WithAutoActivate(false))
	var log lifecycleLog
	log.attach(t, bus)

	h, err := m.Load(context.Background(), "core")
	if err != nil {
		t.Fatal(err)
	}
	if h.State() != StateLoaded {
		t.Errorf("State() = %s, want loaded", h.State())
	}
	if len(log.get()) != 0 {
		t.Errorf("lifecycle = %v, want none", log.get())
	}
	if n := h.Registrations(); n != 0 {
		t.Errorf("Registrations() = %d, want 0", n)
	}
}

func TestManager_PluginConfig(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "greeter", "name: greeter\nconfig:\n  prefix: hi\n", greeterSource)

	m, bus := newTestManager(t, base, WithPluginConfig("greeter", map[string]any{"prefix": "hey"}))
	if _, err := m.Load(context.Background(), "greeter"); err != nil {
		t.Fatal(err)
	}

	if got := joinMessage(t, bus); got != "hey alex" {
		t.Errorf("JoinMessage = %q, want %q", got, "hey alex")
	}
}

func TestManager_ActivateFailureIsNotLoaded(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "grumpy", "name: grumpy\n", `
		function activate()
			events.on("player.join", function() end)
			error("no")
		end
	`)

	m, bus := newTestManager(t, base)
	if _, err := m.Load(context.Background(), "grumpy"); err == nil {
		t.Fatal("Load() should fail")
	}

	if _, ok := m.Get("grumpy"); ok {
		t.Error("grumpy is listed as loaded")
	}
	if owners := bus.Registry().Owners(); len(owners) != 0 {
		t.Errorf("Owners() = %v, want none", owners)
	}
}

func TestManager_ConcurrentRaisesAcrossPlugins(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "alpha", "name: alpha\n", `
		seen = 0
		events.on("t.x", function() events.raise("t.y") end)
		events.on("t.w", function() seen = seen + 1 end)
		function count() return seen end
	`)
	writePlugin(t, base, "beta", "name: beta\n", `
		seen = 0
		events.on("t.z", function() events.raise("t.w") end)
		events.on("t.y", function() seen = seen + 1 end)
		function count() return seen end
	`)

	m, bus := newTestManager(t, base)
	mustLoadAll(t, m)

	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		for _, k := range []event.Kind{"t.x", "t.z"} {
			wg.Add(1)
			go func(k event.Kind) {
				defer wg.Done()
				report, err := bus.Raise(context.Background(), event.NewDynamic(k, nil))
				if err != nil {
					t.Error(err)
					return
				}
				if !report.OK() {
					t.Errorf("raise %s: %v", k, report.Err())
				}
			}(k)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposing raises between two plugins did not finish")
	}

	for _, name := range []string{"alpha", "beta"} {
		h, ok := m.Get(name)
		if !ok {
			t.Fatalf("%s not loaded", name)
		}
		out, err := h.Call(context.Background(), "count")
		if err != nil {
			t.Fatal(err)
		}
		if out[0] != int64(rounds) {
			t.Errorf("%s saw %v forwarded events, want %d", name, out[0], rounds)
		}
	}
}

func TestPlanLevels(t *testing.T) {
	info := func(name string, depend, soft []string) *Info {
		m := NewManifestMinimal(name, "")
		m.Depend = depend
		m.SoftDepend = soft
		return &Info{Name: name, Manifest: m}
	}

	levels, skipped := planLevels([]*Info{
		info("c", []string{"b"}, nil),
		info("b", []string{"a"}, nil),
		info("a", nil, nil),
		info("d", nil, []string{"c", "absent"}),
		info("e", []string{"loaded"}, nil),
	}, map[string]bool{"loaded": true})
	if len(skipped) != 0 {
		t.Errorf("skipped = %v, want none", skipped)
	}

	var got [][]string
	for _, level := range levels {
		got = append(got, infoNames(level))
	}
	if want := [][]string{{"a", "e"}, {"b"}, {"c"}, {"d"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("levels = %v, want %v", got, want)
	}
}

func TestPlanLevels_Skipped(t *testing.T) {
	broken := &Info{Name: "broken", Err: ErrNoEntryPoint}
	a := &Info{Name: "a", Manifest: &Manifest{Name: "a", Depend: []string{"b"}}}
	b := &Info{Name: "b", Manifest: &Manifest{Name: "b", Depend: []string{"a"}}}
	c := &Info{Name: "c", Manifest: &Manifest{Name: "c", Depend: []string{"broken"}}}
	d := &Info{Name: "d", Manifest: &Manifest{Name: "d", Depend: []string{"c"}}}
	e := &Info{Name: "e", Manifest: &Manifest{Name: "e"}}

	levels, skipped := planLevels([]*Info{broken, a, b, c, d, e}, nil)

	if len(levels) != 1 || !slices.Equal(infoNames(levels[0]), []string{"e"}) {
		t.Fatalf("levels = %v, want [[e]]", levels)
	}
	tests := []struct {
		name string
		want error
	}{
		{"broken", ErrNoEntryPoint},
		{"a", ErrCyclicDependency},
		{"b", ErrCyclicDependency},
		{"c", ErrDependencyNotFound},
		{"d", ErrDependencyNotFound},
	}
	for _, tt := range tests {
		if !errors.Is(skipped[tt.name], tt.want) {
			t.Errorf("skipped[%s] = %v, want %v", tt.name, skipped[tt.name], tt.want)
		}
	}
}
