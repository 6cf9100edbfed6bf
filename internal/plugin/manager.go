package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/plugbus/internal/event"
	"github.com/dshills/plugbus/internal/event/events"
	plua "github.com/dshills/plugbus/internal/plugin/lua"
)

// Manager loads plugins in dependency order and binds them to a bus.
type Manager struct {
	mu sync.RWMutex

	bus    *event.Bus
	loader *Loader
	logger *slog.Logger

	// Loaded plugins by name
	plugins map[string]*Host

	// Load order, used to unload in reverse
	loadOrder []string

	// Last load failure by plugin name
	failed map[string]error

	// Lua runtime shared by every host
	runtime *plua.Runtime

	hostOpts     []HostOption
	configs      map[string]map[string]any
	autoActivate bool
	parallel     int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerPaths sets the plugin search paths.
func WithManagerPaths(paths ...string) ManagerOption {
	return func(m *Manager) {
		m.loader = NewLoader(WithPaths(paths...))
	}
}

// WithManagerLogger sets the logger for lifecycle messages. Hosts use it
// too unless WithHostOptions sets another.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithHostOptions applies opts to every host the manager creates.
func WithHostOptions(opts ...HostOption) ManagerOption {
	return func(m *Manager) {
		m.hostOpts = append(m.hostOpts, opts...)
	}
}

// WithPluginConfig overrides the config passed to setup for one plugin.
func WithPluginConfig(name string, config map[string]any) ManagerOption {
	return func(m *Manager) {
		m.configs[name] = config
	}
}

// WithAutoActivate sets whether plugins are activated after loading.
// Defaults to true.
func WithAutoActivate(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.autoActivate = enabled
	}
}

// WithParallelLoad lets LoadAll load up to n plugins of one dependency
// level at a time. n <= 1 loads sequentially.
func WithParallelLoad(n int) ManagerOption {
	return func(m *Manager) {
		m.parallel = n
	}
}

// NewManager creates a plugin manager bound to bus.
func NewManager(bus *event.Bus, opts ...ManagerOption) *Manager {
	m := &Manager{
		bus:          bus,
		logger:       slog.Default(),
		plugins:      make(map[string]*Host),
		failed:       make(map[string]error),
		runtime:      plua.NewRuntime(),
		configs:      make(map[string]map[string]any),
		autoActivate: true,
		parallel:     1,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.loader == nil {
		m.loader = NewLoader()
	}
	return m
}

// Bus returns the bus plugins register on.
func (m *Manager) Bus() *event.Bus {
	return m.bus
}

// Loader returns the plugin loader.
func (m *Manager) Loader() *Loader {
	return m.loader
}

// Discover scans the search paths.
func (m *Manager) Discover() ([]*Info, error) {
	return m.loader.Discover()
}

// Load loads and, with auto-activation, activates the named plugin. Every
// hard dependency must already be loaded.
func (m *Manager) Load(ctx context.Context, name string) (*Host, error) {
	info, err := m.loader.FindPlugin(name)
	if err != nil {
		return nil, err
	}
	return m.load(ctx, info)
}

func (m *Manager) load(ctx context.Context, info *Info) (*Host, error) {
	host, err := m.loadInfo(ctx, info)
	if err != nil && !errors.Is(err, ErrAlreadyLoaded) {
		m.recordFailure(info.Name, err)
	}
	return host, err
}

func (m *Manager) recordFailure(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[name] = err
}

func (m *Manager) loadInfo(ctx context.Context, info *Info) (*Host, error) {
	name := info.Name
	if info.Err != nil {
		return nil, fmt.Errorf("plugin %q: %w", name, info.Err)
	}

	m.mu.Lock()
	if _, exists := m.plugins[name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("plugin %q: %w", name, ErrAlreadyLoaded)
	}
	for _, dep := range info.Manifest.Depend {
		if h, ok := m.plugins[dep]; !ok || h == nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("plugin %q needs %q: %w", name, dep, ErrDependencyNotFound)
		}
	}
	// Reserve the name while loading outside the lock.
	m.plugins[name] = nil
	m.mu.Unlock()

	host, err := m.newHost(info.Manifest)
	if err == nil {
		err = host.Load(ctx)
	}
	if err == nil && m.autoActivate {
		if err = host.Activate(ctx); err != nil {
			_, _ = host.Unload(ctx)
		}
	}
	if err != nil {
		m.mu.Lock()
		delete(m.plugins, name)
		m.mu.Unlock()
		m.logger.ErrorContext(ctx, "plugin failed to load",
			slog.String("plugin", name), slog.Any("error", err))
		return nil, err
	}

	m.mu.Lock()
	m.plugins[name] = host
	m.loadOrder = append(m.loadOrder, name)
	delete(m.failed, name)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "plugin loaded",
		slog.String("plugin", name),
		slog.String("version", info.Manifest.Version),
		slog.String("state", host.State().String()))

	if host.State() == StateActive {
		m.raise(ctx, &events.PluginEnable{Name: name, Version: info.Manifest.Version})
	}
	return host, nil
}

func (m *Manager) newHost(manifest *Manifest) (*Host, error) {
	opts := append([]HostOption{WithHostLogger(m.logger), WithHostRuntime(m.runtime)}, m.hostOpts...)
	if cfg, ok := m.configs[manifest.Name]; ok {
		opts = append(opts, WithHostConfig(cfg))
	}
	return NewHost(manifest, m.bus, opts...)
}

// raise dispatches a lifecycle event. Handler failures are logged by the
// dispatcher.
func (m *Manager) raise(ctx context.Context, ev event.Event) {
	if _, err := m.bus.Raise(ctx, ev); err != nil {
		m.logger.WarnContext(ctx, "lifecycle event not raised",
			slog.String("kind", string(ev.Kind())), slog.Any("error", err))
	}
}

// LoadAll discovers and loads every plugin. Plugins are grouped into
// dependency levels; each level loads after the previous one finished,
// with up to the configured parallelism inside a level. A plugin whose
// hard dependency failed is not loaded. All failures are returned
// together.
func (m *Manager) LoadAll(ctx context.Context) error {
	infos, err := m.loader.Discover()
	if err != nil {
		return err
	}

	var (
		errMu sync.Mutex
		merr  *multierror.Error
	)
	record := func(err error) {
		errMu.Lock()
		merr = multierror.Append(merr, err)
		errMu.Unlock()
	}

	levels, skipped := planLevels(infos, m.loadedNames())
	for _, name := range sortedKeys(skipped) {
		m.recordFailure(name, skipped[name])
		merr = multierror.Append(merr, skipped[name])
	}

	for _, level := range levels {
		var g errgroup.Group
		g.SetLimit(max(1, m.parallel))
		for _, info := range level {
			g.Go(func() error {
				if _, err := m.load(ctx, info); err != nil {
					record(err)
				}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			record(err)
			break
		}
	}

	return merr.ErrorOrNil()
}

func (m *Manager) loadedNames() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make(map[string]bool, len(m.plugins))
	for name := range m.plugins {
		names[name] = true
	}
	return names
}

// planLevels groups loadable plugins into dependency levels. Level 0 has
// no unloaded dependencies; level n depends only on earlier levels or on
// plugins in loaded. Soft dependencies order plugins when both are
// present. Broken plugins, missing hard dependencies and cycles are left
// out of the plan and returned by name.
func planLevels(infos []*Info, loaded map[string]bool) ([][]*Info, map[string]error) {
	skipped := make(map[string]error)

	byName := make(map[string]*Info, len(infos))
	for _, info := range infos {
		if loaded[info.Name] {
			continue
		}
		if info.Err != nil {
			skipped[info.Name] = fmt.Errorf("plugin %q: %w", info.Name, info.Err)
			continue
		}
		byName[info.Name] = info
	}

	// Drop plugins with missing hard dependencies until stable, since
	// dropping one can strand its dependents.
	for changed := true; changed; {
		changed = false
		for _, name := range sortedKeys(byName) {
			for _, dep := range byName[name].Manifest.Depend {
				if _, ok := byName[dep]; !ok && !loaded[dep] {
					skipped[name] = fmt.Errorf("plugin %q needs %q: %w", name, dep, ErrDependencyNotFound)
					delete(byName, name)
					changed = true
					break
				}
			}
		}
	}

	pending := make(map[string][]string, len(byName))
	for name, info := range byName {
		for _, dep := range slices.Concat(info.Manifest.Depend, info.Manifest.SoftDepend) {
			if _, ok := byName[dep]; ok {
				pending[name] = append(pending[name], dep)
			}
		}
	}

	var levels [][]*Info
	done := make(map[string]bool, len(byName))
	for len(done) < len(byName) {
		var level []*Info
		for _, name := range sortedKeys(byName) {
			if done[name] {
				continue
			}
			ready := true
			for _, dep := range pending[name] {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, byName[name])
			}
		}

		if len(level) == 0 {
			var stuck []string
			for _, name := range sortedKeys(byName) {
				if !done[name] {
					stuck = append(stuck, name)
				}
			}
			for _, name := range stuck {
				skipped[name] = fmt.Errorf("plugin %q: %w: %v", name, ErrCyclicDependency, stuck)
			}
			break
		}

		for _, info := range level {
			done[info.Name] = true
		}
		levels = append(levels, level)
	}

	return levels, skipped
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unload deactivates the named plugin, removes its handlers and closes its
// Lua state.
func (m *Manager) Unload(ctx context.Context, name string) error {
	return m.unload(ctx, name, "unloaded")
}

func (m *Manager) unload(ctx context.Context, name, reason string) error {
	m.mu.Lock()
	host, exists := m.plugins[name]
	if !exists || host == nil {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrNotLoaded)
	}
	delete(m.plugins, name)
	m.loadOrder = slices.DeleteFunc(m.loadOrder, func(n string) bool { return n == name })
	m.mu.Unlock()

	wasActive := host.State() == StateActive
	removed, err := host.Unload(ctx)

	m.logger.InfoContext(ctx, "plugin unloaded",
		slog.String("plugin", name),
		slog.Int("handlers", removed),
		slog.String("reason", reason))

	if wasActive {
		m.raise(ctx, &events.PluginDisable{Name: name, Version: host.Manifest().Version, Reason: reason})
	}
	return err
}

// UnloadAll unloads every plugin in reverse load order.
func (m *Manager) UnloadAll(ctx context.Context) error {
	m.mu.RLock()
	names := slices.Clone(m.loadOrder)
	m.mu.RUnlock()
	slices.Reverse(names)

	var merr *multierror.Error
	for _, name := range names {
		if err := m.unload(ctx, name, "shutdown"); err != nil && !errors.Is(err, ErrNotLoaded) {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// Reload unloads the named plugin, rescans the search paths and loads it
// again.
func (m *Manager) Reload(ctx context.Context, name string) (*Host, error) {
	if err := m.unload(ctx, name, "reload"); err != nil && !errors.Is(err, ErrNotLoaded) {
		m.logger.WarnContext(ctx, "plugin did not deactivate cleanly",
			slog.String("plugin", name), slog.Any("error", err))
	}
	if _, err := m.loader.Discover(); err != nil {
		return nil, err
	}
	return m.Load(ctx, name)
}

// Get returns a loaded plugin by name.
func (m *Manager) Get(name string) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	host, ok := m.plugins[name]
	return host, ok && host != nil
}

// List returns the loaded plugins in load order.
func (m *Manager) List() []*Host {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hosts := make([]*Host, 0, len(m.loadOrder))
	for _, name := range m.loadOrder {
		if host := m.plugins[name]; host != nil {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// Failure returns the last load failure of the named plugin, or nil once
// it loads.
func (m *Manager) Failure(name string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failed[name]
}

// Count returns the number of loaded plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.loadOrder)
}
