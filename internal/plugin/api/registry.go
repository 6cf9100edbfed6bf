package api

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/plugbus/internal/event"
	plua "github.com/dshills/plugbus/internal/plugin/lua"
)

// Module is a Lua API module installed into a plugin state.
type Module interface {
	// Name returns the global the module is installed under.
	Name() string

	// Register installs the module into the Lua state.
	Register(L *lua.LState) error
}

// Context binds API modules to a single plugin.
type Context struct {
	// Bus receives the plugin's registrations and raised events.
	Bus *event.Bus

	// Owner tags every registration made by the plugin.
	Owner event.Owner

	// State is the plugin's Lua state. Handlers created by the events
	// module call back into it.
	State *plua.State

	// Logger is used by the log module. Defaults to slog.Default.
	Logger *slog.Logger
}

func (c *Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Registry manages API modules and their injection.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// Register adds a module to the registry.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[mod.Name()]; exists {
		return fmt.Errorf("module %q already registered", mod.Name())
	}
	r.modules[mod.Name()] = mod
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mod, ok := r.modules[name]
	return mod, ok
}

// List returns the registered module names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InjectAll installs every module into the Lua state.
func (r *Registry) InjectAll(L *lua.LState) error {
	return r.Inject(L, r.List()...)
}

// Inject installs the named modules into the Lua state.
func (r *Registry) Inject(L *lua.LState, names ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range names {
		mod, ok := r.modules[name]
		if !ok {
			return fmt.Errorf("module %q not found", name)
		}
		if err := mod.Register(L); err != nil {
			return fmt.Errorf("register module %q: %w", name, err)
		}
	}
	return nil
}

// Standard returns a registry holding the events, log and util modules
// bound to ctx, along with the events module so the caller can clean up
// its registrations.
func Standard(ctx *Context) (*Registry, *EventsModule, error) {
	r := NewRegistry()
	ev := NewEventsModule(ctx)

	for _, mod := range []Module{ev, NewLogModule(ctx), NewUtilModule()} {
		if err := r.Register(mod); err != nil {
			return nil, nil, err
		}
	}
	return r, ev, nil
}
