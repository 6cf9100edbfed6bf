package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/plugbus/internal/event"
	"github.com/dshills/plugbus/internal/plugin/api"
	plua "github.com/dshills/plugbus/internal/plugin/lua"
)

// Host manages a single plugin's Lua state and lifecycle.
type Host struct {
	mu sync.RWMutex

	// Identity
	name     string
	manifest *Manifest

	// Bindings
	bus    *event.Bus
	logger *slog.Logger

	// Lua runtime
	state *plua.State

	// State
	pluginState State
	err         error

	config map[string]any

	executionTimeout time.Duration
	runtime          *plua.Runtime
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostExecutionTimeout bounds each top-level call into the plugin.
func WithHostExecutionTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		h.executionTimeout = d
	}
}

// WithHostRuntime runs the plugin's Lua state under rt.
func WithHostRuntime(rt *plua.Runtime) HostOption {
	return func(h *Host) {
		h.runtime = rt
	}
}

// WithHostConfig overrides manifest config values passed to setup.
func WithHostConfig(config map[string]any) HostOption {
	return func(h *Host) {
		maps.Copy(h.config, config)
	}
}

// WithHostLogger sets the logger. Lua print output and the log module
// write to it with a plugin attribute.
func WithHostLogger(l *slog.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHost creates a host for the plugin described by manifest. Handlers the
// plugin registers go to bus, owned by the plugin name.
func NewHost(manifest *Manifest, bus *event.Bus, opts ...HostOption) (*Host, error) {
	if manifest == nil {
		return nil, ErrNilManifest
	}
	if bus == nil {
		return nil, ErrNilBus
	}

	h := &Host{
		name:             manifest.Name,
		manifest:         manifest,
		bus:              bus,
		logger:           slog.Default(),
		pluginState:      StateUnloaded,
		config:           maps.Clone(manifest.Config),
		executionTimeout: plua.DefaultExecutionTimeout,
	}
	if h.config == nil {
		h.config = make(map[string]any)
	}

	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Name returns the plugin name.
func (h *Host) Name() string {
	return h.name
}

// Owner returns the owner tag of the plugin's registrations.
func (h *Host) Owner() event.Owner {
	return event.Owner(h.name)
}

// Manifest returns the plugin manifest.
func (h *Host) Manifest() *Manifest {
	return h.manifest
}

// State returns the current plugin state.
func (h *Host) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pluginState
}

// Error returns the last lifecycle error.
func (h *Host) Error() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Config returns a copy of the plugin configuration.
func (h *Host) Config() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.config)
}

// Load creates the Lua state, installs the API modules and runs the main
// chunk. Handlers registered by a failed chunk are removed.
func (h *Host) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pluginState != StateUnloaded && h.pluginState != StateError {
		return ErrAlreadyLoaded
	}

	// A failed activation leaves the previous state behind.
	if h.state != nil {
		h.bus.UnregisterOwner(h.Owner())
		_ = h.state.Close()
		h.state = nil
	}

	logger := h.logger.With(slog.String("plugin", h.name))
	state := plua.NewState(
		plua.WithExecutionTimeout(h.executionTimeout),
		plua.WithRuntime(h.runtime),
		plua.WithPrint(func(line string) {
			logger.Info(line, slog.String("source", "print"))
		}),
	)

	modules, _, err := api.Standard(&api.Context{
		Bus:    h.bus,
		Owner:  h.Owner(),
		State:  state,
		Logger: h.logger,
	})
	if err == nil {
		err = state.Do(ctx, modules.InjectAll)
	}
	if err == nil {
		err = state.DoFile(ctx, h.manifest.MainPath())
	}
	if err != nil {
		h.bus.UnregisterOwner(h.Owner())
		_ = state.Close()
		return h.fail(fmt.Errorf("load plugin %s: %w", h.name, err))
	}

	h.state = state
	h.pluginState = StateLoaded
	h.err = nil
	return nil
}

// fail records err and moves to StateError. Must be called with mu held.
func (h *Host) fail(err error) error {
	h.pluginState = StateError
	h.err = err
	return err
}

// Activate calls setup(config) and activate() when the plugin defines them.
func (h *Host) Activate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pluginState != StateLoaded {
		return ErrNotLoaded
	}
	h.pluginState = StateActivating

	config := h.config
	err := h.callOptional(ctx, "setup", func(L *lua.LState) []lua.LValue {
		return []lua.LValue{plua.MapToTable(L, config)}
	})
	if err == nil {
		err = h.callOptional(ctx, "activate", nil)
	}
	if err != nil {
		return h.fail(fmt.Errorf("activate plugin %s: %w", h.name, err))
	}

	h.pluginState = StateActive
	h.err = nil
	return nil
}

// Deactivate calls deactivate() and returns the plugin to StateLoaded.
// Its handlers stay registered until Unload.
func (h *Host) Deactivate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deactivate(ctx)
}

func (h *Host) deactivate(ctx context.Context) error {
	if h.pluginState != StateActive {
		return nil
	}
	h.pluginState = StateDeactivating

	err := h.callOptional(ctx, "deactivate", nil)
	h.pluginState = StateLoaded
	if err != nil {
		h.err = fmt.Errorf("deactivate plugin %s: %w", h.name, err)
		return h.err
	}
	return nil
}

// Unload deactivates the plugin if needed, removes all of its handlers
// from the bus and closes the Lua state. It returns the number of
// registrations removed. A deactivate error is returned after cleanup.
func (h *Host) Unload(ctx context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pluginState == StateUnloaded {
		return 0, nil
	}

	err := h.deactivate(ctx)
	removed := h.bus.UnregisterOwner(h.Owner())

	if h.state != nil {
		_ = h.state.Close()
		h.state = nil
	}
	h.pluginState = StateUnloaded
	return removed, err
}

// callOptional calls the global function name if the plugin defines it.
// Must be called with mu held.
func (h *Host) callOptional(ctx context.Context, name string, args func(L *lua.LState) []lua.LValue) error {
	return h.state.Do(ctx, func(L *lua.LState) error {
		fn, ok := L.GetGlobal(name).(*lua.LFunction)
		if !ok {
			return nil
		}
		var argv []lua.LValue
		if args != nil {
			argv = args(L)
		}
		return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, argv...)
	})
}

// Call calls a global Lua function with Go arguments and returns Go
// results.
func (h *Host) Call(ctx context.Context, fn string, args ...any) ([]any, error) {
	h.mu.RLock()
	state := h.state
	h.mu.RUnlock()

	if state == nil {
		return nil, ErrNotLoaded
	}

	var out []any
	err := state.Do(ctx, func(L *lua.LState) error {
		argv := make([]lua.LValue, len(args))
		for i, a := range args {
			argv[i] = plua.ToLua(L, a)
		}
		results, err := state.CallGlobal(L.Context(), fn, argv...)
		if err != nil {
			return err
		}
		out = make([]any, len(results))
		for i, r := range results {
			out[i] = plua.ToGo(r)
		}
		return nil
	})
	return out, err
}

// HasFunction reports whether the plugin defines the global function.
func (h *Host) HasFunction(name string) bool {
	h.mu.RLock()
	state := h.state
	h.mu.RUnlock()

	return state != nil && state.HasFunction(name)
}

// Registrations returns the number of live handlers registered by the
// plugin.
func (h *Host) Registrations() int {
	n := 0
	for _, k := range h.bus.Registry().Kinds() {
		if list, ok := h.bus.Registry().Lookup(k); ok {
			n += len(list.ByOwner(h.Owner()))
		}
	}
	return n
}

// Stats returns a snapshot of the host.
func (h *Host) Stats() HostStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HostStats{
		Name:          h.name,
		Version:       h.manifest.Version,
		State:         h.pluginState,
		Registrations: h.Registrations(),
		Err:           h.err,
	}
}

// HostStats describes a plugin host.
type HostStats struct {
	Name          string
	Version       string
	State         State
	Registrations int
	Err           error
}
