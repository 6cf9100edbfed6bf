package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLUGBUS_"

// Config is the complete plugbus configuration.
type Config struct {
	Plugins  Plugins  `toml:"plugins" envPrefix:"PLUGINS_"`
	Dispatch Dispatch `toml:"dispatch" envPrefix:"DISPATCH_"`
	Log      Log      `toml:"log" envPrefix:"LOG_"`
	Metrics  Metrics  `toml:"metrics" envPrefix:"METRICS_"`
}

// Plugins configures plugin discovery and loading.
type Plugins struct {
	// Search paths, in priority order. Empty means the loader defaults.
	Paths []string `toml:"paths" env:"PATHS"`

	// Watch reloads plugins when their files change.
	Watch    bool     `toml:"watch" env:"WATCH"`
	Debounce Duration `toml:"debounce" env:"DEBOUNCE"`

	// Parallel is the number of plugins of one dependency level loaded at
	// a time.
	Parallel int `toml:"parallel" env:"PARALLEL"`

	// ExecutionTimeout bounds each call into a plugin.
	ExecutionTimeout Duration `toml:"execution_timeout" env:"EXECUTION_TIMEOUT"`

	// Config overrides manifest config per plugin name.
	Config map[string]map[string]any `toml:"config"`
}

// Dispatch configures the event bus.
type Dispatch struct {
	HandlerTimeout Duration `toml:"handler_timeout" env:"HANDLER_TIMEOUT"`
	AsyncWorkers   int      `toml:"async_workers" env:"ASYNC_WORKERS"`
	AsyncQueue     int      `toml:"async_queue" env:"ASYNC_QUEUE"`
	MonitorGuard   bool     `toml:"monitor_guard" env:"MONITOR_GUARD"`
}

// Log configures logging. An empty File logs to stderr.
type Log struct {
	Level      string `toml:"level" env:"LEVEL"`
	Format     string `toml:"format" env:"FORMAT"`
	File       string `toml:"file" env:"FILE"`
	MaxSizeMB  int    `toml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `toml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `toml:"max_age_days" env:"MAX_AGE_DAYS"`
	Compress   bool   `toml:"compress" env:"COMPRESS"`
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// Metrics configures the periodic metrics exporter.
type Metrics struct {
	Enabled  bool     `toml:"enabled" env:"ENABLED"`
	Interval Duration `toml:"interval" env:"INTERVAL"`
}

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Plugins: Plugins{
			Debounce:         Duration(250 * time.Millisecond),
			Parallel:         1,
			ExecutionTimeout: Duration(5 * time.Second),
		},
		Dispatch: Dispatch{
			AsyncWorkers: 4,
			AsyncQueue:   1024,
		},
		Log: Log{
			Level:      "info",
			Format:     FormatText,
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: Metrics{
			Interval: Duration(time.Minute),
		},
	}
}

// DefaultPath returns ~/.config/plugbus/config.toml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "plugbus", "config.toml")
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.decode(path, data); err != nil {
				return nil, err
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result.
// Environment variables are not consulted.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode("<input>", data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(source string, data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		perr := &ParseError{Path: source, Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}
	return nil
}

// ApplyEnv overrides c from PLUGBUS_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks every setting and reports all problems together.
func (c *Config) Validate() error {
	var merr *multierror.Error
	invalid := func(path, msg string, value any) {
		merr = multierror.Append(merr, &ValidationError{Path: path, Message: msg, Value: value})
	}

	if c.Plugins.Parallel < 1 {
		invalid("plugins.parallel", "must be at least 1", c.Plugins.Parallel)
	}
	if c.Plugins.Debounce <= 0 {
		invalid("plugins.debounce", "must be positive", c.Plugins.Debounce)
	}
	if c.Plugins.ExecutionTimeout < 0 {
		invalid("plugins.execution_timeout", "must not be negative", c.Plugins.ExecutionTimeout)
	}

	if c.Dispatch.HandlerTimeout < 0 {
		invalid("dispatch.handler_timeout", "must not be negative", c.Dispatch.HandlerTimeout)
	}
	if c.Dispatch.AsyncWorkers < 1 {
		invalid("dispatch.async_workers", "must be at least 1", c.Dispatch.AsyncWorkers)
	}
	if c.Dispatch.AsyncQueue < 0 {
		invalid("dispatch.async_queue", "must not be negative", c.Dispatch.AsyncQueue)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		invalid("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	if !slices.Contains([]string{FormatText, FormatJSON}, c.Log.Format) {
		invalid("log.format", "must be text or json", c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		invalid("log", "rotation limits must not be negative",
			[]int{c.Log.MaxSizeMB, c.Log.MaxBackups, c.Log.MaxAgeDays})
	}

	if c.Metrics.Enabled && c.Metrics.Interval <= 0 {
		invalid("metrics.interval", "must be positive when metrics are enabled", c.Metrics.Interval)
	}

	return merr.ErrorOrNil()
}

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
