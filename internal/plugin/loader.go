package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Loader discovers plugins on the filesystem.
type Loader struct {
	mu sync.RWMutex

	// Search paths, checked in order. The first path holding a plugin
	// name wins.
	paths []string

	discovered map[string]*Info
}

// Info describes a discovered plugin.
type Info struct {
	Name     string
	Path     string // plugin directory, or the file for single-file plugins
	Manifest *Manifest
	Err      error // set when the plugin cannot be loaded
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the plugin search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// NewLoader creates a plugin loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		paths:      DefaultPluginPaths(),
		discovered: make(map[string]*Info),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DefaultPluginPaths returns ~/.config/plugbus/plugins and ./plugins.
func DefaultPluginPaths() []string {
	paths := make([]string, 0, 2)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "plugbus", "plugins"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "plugins"))
	}
	return paths
}

// Paths returns the search paths.
func (l *Loader) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.paths...)
}

// AddPath appends a search path.
func (l *Loader) AddPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

// Discover scans the search paths and returns every plugin found, sorted
// by name. Plugins that cannot be loaded are included with Err set.
// Missing search paths are skipped.
func (l *Loader) Discover() ([]*Info, error) {
	found := make(map[string]*Info)
	for _, base := range l.Paths() {
		if err := discoverInPath(base, found); err != nil {
			return nil, fmt.Errorf("scan %s: %w", base, err)
		}
	}

	l.mu.Lock()
	l.discovered = found
	l.mu.Unlock()

	infos := make([]*Info, 0, len(found))
	for _, info := range found {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

func discoverInPath(base string, found map[string]*Info) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		var info *Info
		switch {
		case entry.IsDir():
			info = inspectDir(entry.Name(), filepath.Join(base, entry.Name()))
		case filepath.Ext(entry.Name()) == ".lua":
			info = inspectFile(filepath.Join(base, entry.Name()))
		default:
			continue
		}

		if prev, exists := found[info.Name]; exists {
			// Two plugins with one name in the same directory clash.
			// A later search path is shadowed silently.
			if filepath.Dir(prev.Path) == base && prev.Err == nil {
				prev.Err = fmt.Errorf("%w: %s and %s", ErrDuplicatePlugin, prev.Path, info.Path)
			}
			continue
		}
		found[info.Name] = info
	}
	return nil
}

// inspectFile describes a single-file plugin.
func inspectFile(path string) *Info {
	name := strings.TrimSuffix(filepath.Base(path), ".lua")
	manifest := NewManifestMinimal(name, filepath.Dir(path))
	manifest.Main = filepath.Base(path)

	info := &Info{Name: name, Path: path, Manifest: manifest}
	if err := manifest.Validate(); err != nil {
		info.Err = err
	}
	return info
}

// inspectDir describes a directory plugin.
func inspectDir(name, dir string) *Info {
	info := &Info{Name: name, Path: dir}

	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err == nil {
		manifest, err := LoadManifestFromDir(dir)
		if err != nil {
			info.Err = fmt.Errorf("invalid manifest: %w", err)
			return info
		}
		info.Name = manifest.Name
		info.Manifest = manifest
		if _, err := os.Stat(manifest.MainPath()); err != nil {
			info.Err = fmt.Errorf("%w: %s", ErrNoEntryPoint, manifest.Main)
		}
		return info
	}

	for _, main := range []string{DefaultMain, "plugin.lua"} {
		if _, err := os.Stat(filepath.Join(dir, main)); err == nil {
			manifest := NewManifestMinimal(name, dir)
			manifest.Main = main
			info.Manifest = manifest
			if err := manifest.Validate(); err != nil {
				info.Err = err
			}
			return info
		}
	}

	info.Err = ErrNoEntryPoint
	return info
}

// Get returns a plugin from the last Discover.
func (l *Loader) Get(name string) (*Info, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.discovered[name]
	return info, ok
}

// FindPlugin returns the named plugin, scanning the search paths if the
// last Discover did not see it.
func (l *Loader) FindPlugin(name string) (*Info, error) {
	if info, ok := l.Get(name); ok {
		return info, info.Err
	}

	for _, base := range l.Paths() {
		var info *Info
		dir := filepath.Join(base, name)
		file := dir + ".lua"
		if stat, err := os.Stat(dir); err == nil && stat.IsDir() {
			info = inspectDir(name, dir)
		} else if _, err := os.Stat(file); err == nil {
			info = inspectFile(file)
		} else {
			continue
		}

		l.mu.Lock()
		l.discovered[info.Name] = info
		l.mu.Unlock()
		return info, info.Err
	}
	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// Owner returns the discovered plugin whose files include path.
func (l *Loader) Owner(path string) (*Info, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, info := range l.discovered {
		if info.Path == path || strings.HasPrefix(path, info.Path+string(filepath.Separator)) {
			return info, true
		}
	}
	return nil, false
}

// Errors returns the discovered plugins that cannot be loaded.
func (l *Loader) Errors() []*Info {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var errored []*Info
	for _, info := range l.discovered {
		if info.Err != nil {
			errored = append(errored, info)
		}
	}
	sort.Slice(errored, func(i, j int) bool {
		return errored[i].Name < errored[j].Name
	})
	return errored
}
