package plugin

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name inside a plugin directory.
const ManifestFile = "plugin.yaml"

// DefaultMain is the entry point used when a manifest names none.
const DefaultMain = "init.lua"

// Manifest describes a plugin's metadata and requirements.
type Manifest struct {
	// Identity
	Name        string   `yaml:"name"`        // Unique identifier (e.g., "chat-guard")
	Version     string   `yaml:"version"`     // Semver (e.g., "1.2.0")
	Description string   `yaml:"description"` // Short description
	Author      string   `yaml:"author"`      // Single author, merged into Authors
	Authors     []string `yaml:"authors"`
	Website     string   `yaml:"website"`

	// Entry point, relative to the plugin directory
	Main string `yaml:"main"`

	// Ordering
	Depend     []string `yaml:"depend"`     // Must be present and load first
	SoftDepend []string `yaml:"softdepend"` // Load first when present

	// Config is passed to setup(config). Host options override it key by key.
	Config map[string]any `yaml:"config"`

	// dir is the plugin directory
	dir string
}

// Validation errors.
var (
	ErrMissingName    = errors.New("manifest: name is required")
	ErrInvalidName    = errors.New("manifest: name must be lower-case alphanumeric with hyphens")
	ErrInvalidVersion = errors.New("manifest: version must be valid semver")
	ErrInvalidMain    = errors.New("manifest: main must be a .lua file inside the plugin")
	ErrSelfDependency = errors.New("manifest: plugin depends on itself")
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest loads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// LoadManifestFromDir loads plugin.yaml from a plugin directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFile))
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewManifestMinimal creates a manifest for a plugin without plugin.yaml.
func NewManifestMinimal(name, dir string) *Manifest {
	return &Manifest{
		Name:    name,
		Version: "0.0.0",
		Main:    DefaultMain,
		dir:     dir,
	}
}

func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = DefaultMain
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
	if m.Author != "" && !slices.Contains(m.Authors, m.Author) {
		m.Authors = append([]string{m.Author}, m.Authors...)
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}

	if filepath.Ext(m.Main) != ".lua" || !filepath.IsLocal(m.Main) {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}

	for _, dep := range slices.Concat(m.Depend, m.SoftDepend) {
		if dep == m.Name {
			return fmt.Errorf("%w: %s", ErrSelfDependency, m.Name)
		}
		if !namePattern.MatchString(dep) {
			return fmt.Errorf("%w: dependency %q", ErrInvalidName, dep)
		}
	}
	return nil
}

// Dir returns the plugin directory.
func (m *Manifest) Dir() string {
	return m.dir
}

// MainPath returns the full path to the entry point.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.dir, m.Main)
}

// String returns "name vversion".
func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.Name, m.Version)
}

// Clone creates a deep copy of the manifest. Config values are copied one
// level deep.
func (m *Manifest) Clone() *Manifest {
	clone := *m
	clone.Authors = slices.Clone(m.Authors)
	clone.Depend = slices.Clone(m.Depend)
	clone.SoftDepend = slices.Clone(m.SoftDepend)
	clone.Config = maps.Clone(m.Config)
	return &clone
}
