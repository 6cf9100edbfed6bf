package plugin

import "errors"

// Plugin system errors.
var (
	// ErrPluginNotFound is returned when a plugin cannot be located.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNoEntryPoint is returned when a plugin directory has no Lua entry point.
	ErrNoEntryPoint = errors.New("plugin has no entry point (init.lua or plugin.lua)")

	// ErrNilManifest is returned when a nil manifest is provided.
	ErrNilManifest = errors.New("manifest is nil")

	// ErrNilBus is returned when a host is created without an event bus.
	ErrNilBus = errors.New("event bus is nil")

	// ErrAlreadyLoaded is returned when loading a plugin twice.
	ErrAlreadyLoaded = errors.New("plugin is already loaded")

	// ErrNotLoaded is returned when using a plugin that is not loaded.
	ErrNotLoaded = errors.New("plugin is not loaded")

	// ErrDependencyNotFound is returned when a hard dependency is missing
	// or failed to load.
	ErrDependencyNotFound = errors.New("plugin dependency not found")

	// ErrCyclicDependency is returned when plugins depend on each other.
	ErrCyclicDependency = errors.New("cyclic plugin dependency detected")

	// ErrDuplicatePlugin is returned when two discovered plugins share a name.
	ErrDuplicatePlugin = errors.New("duplicate plugin name")
)
