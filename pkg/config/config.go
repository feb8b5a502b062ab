// Package config loads the optional weave.yaml runtime configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by LoadOptional.
const FileName = "weave.yaml"

// SchemaVersion is the configuration schema this package understands.
const SchemaVersion = "v1.0.0"

// Host kinds accepted by scheduler.host.
const (
	HostIdle  = "idle"
	HostTimer = "timer"
	HostLoop  = "loop"
)

// Config represents weave.yaml.
type Config struct {
	Version     string            `yaml:"version,omitempty"`
	App         AppConfig         `yaml:"app"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Logging     LoggingConfig     `yaml:"logging"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
}

// SchedulerConfig selects how the work loop is resumed.
type SchedulerConfig struct {
	Host      string `yaml:"host,omitempty"`
	IdleDelay string `yaml:"idleDelay,omitempty"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level   string `yaml:"level,omitempty"`
	Format  string `yaml:"format,omitempty"`
	Verbose bool   `yaml:"verbose,omitempty"`
}

// DiagnosticsConfig configures cycle tracing, metrics and the debug server.
type DiagnosticsConfig struct {
	TraceSamples    int    `yaml:"traceSamples,omitempty"`
	SlowCycle       string `yaml:"slowCycle,omitempty"`
	DebugServerPort int    `yaml:"debugServerPort,omitempty"`
	Metrics         *bool  `yaml:"metrics,omitempty"`
}

// Resolved contains configuration with defaults applied and durations
// parsed.
type Resolved struct {
	Root            string
	AppName         string
	Version         string
	Host            string
	IdleDelay       time.Duration
	LogLevel        slog.Level
	LogFormat       string
	Verbose         bool
	TraceSamples    int
	SlowCycle       time.Duration
	DebugServerPort int
	Metrics         bool
}

// Default returns the configuration used when no weave.yaml exists.
func Default() *Config {
	metrics := true
	return &Config{
		Version:   SchemaVersion,
		Scheduler: SchedulerConfig{Host: HostIdle, IdleDelay: "1ms"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Diagnostics: DiagnosticsConfig{
			TraceSamples: 240,
			SlowCycle:    "16ms",
			Metrics:      &metrics,
		},
	}
}

// Parse decodes YAML over the defaults. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return cfg, nil
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional reads weave.yaml from dir if present, and returns the
// defaults otherwise.
func LoadOptional(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save validates c and writes it to path as YAML.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", FileName, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// FindProjectRoot walks up from dir to the nearest directory containing a
// go.mod file.
func FindProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Go module (no go.mod found)")
		}
		dir = parent
	}
}

// Validate checks the schema version and enumerated fields.
func (c *Config) Validate() error {
	v := strings.TrimSpace(c.Version)
	if v == "" {
		v = SchemaVersion
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("config: version %q is not a semantic version", c.Version)
	}
	if semver.Major(v) != semver.Major(SchemaVersion) {
		return fmt.Errorf("config: version %s is not supported (want %s.x)", v, semver.Major(SchemaVersion))
	}
	if semver.Compare(v, SchemaVersion) > 0 {
		return fmt.Errorf("config: version %s is newer than %s", v, SchemaVersion)
	}

	switch c.Scheduler.Host {
	case "", HostIdle, HostTimer, HostLoop:
	default:
		return fmt.Errorf("config: unknown scheduler.host %q", c.Scheduler.Host)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := parseDuration("scheduler.idleDelay", c.Scheduler.IdleDelay); err != nil {
		return err
	}
	if _, err := parseDuration("diagnostics.slowCycle", c.Diagnostics.SlowCycle); err != nil {
		return err
	}
	if c.Diagnostics.TraceSamples < 0 {
		return fmt.Errorf("config: diagnostics.traceSamples must not be negative")
	}
	if p := c.Diagnostics.DebugServerPort; p < 0 || p > 65535 {
		return fmt.Errorf("config: diagnostics.debugServerPort %d out of range", p)
	}
	return nil
}

// Resolve loads weave.yaml from dir (if present) and resolves defaults.
// The app name defaults to the last element of the module path in dir's
// go.mod, then to the directory name.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	return cfg.Resolve(dir)
}

// Resolve applies defaults to c. dir is used only to derive the app name.
func (c *Config) Resolve(dir string) (*Resolved, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	def := Default()

	r := &Resolved{
		Root:            dir,
		AppName:         strings.TrimSpace(c.App.Name),
		Version:         firstNonEmpty(c.Version, SchemaVersion),
		Host:            firstNonEmpty(c.Scheduler.Host, def.Scheduler.Host),
		LogFormat:       firstNonEmpty(c.Logging.Format, def.Logging.Format),
		Verbose:         c.Logging.Verbose,
		TraceSamples:    c.Diagnostics.TraceSamples,
		DebugServerPort: c.Diagnostics.DebugServerPort,
		Metrics:         c.Diagnostics.Metrics == nil || *c.Diagnostics.Metrics,
	}
	if r.AppName == "" {
		r.AppName = defaultAppName(dir)
	}
	if r.TraceSamples == 0 {
		r.TraceSamples = def.Diagnostics.TraceSamples
	}
	r.LogLevel, _ = parseLevel(c.Logging.Level)
	r.IdleDelay, _ = parseDuration("scheduler.idleDelay", firstNonEmpty(c.Scheduler.IdleDelay, def.Scheduler.IdleDelay))
	r.SlowCycle, _ = parseDuration("diagnostics.slowCycle", firstNonEmpty(c.Diagnostics.SlowCycle, def.Diagnostics.SlowCycle))
	return r, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: unknown logging.level %q", s)
	}
	return level, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", field)
	}
	return d, nil
}

func defaultAppName(dir string) string {
	if dir == "" {
		return "weave_app"
	}
	if data, err := os.ReadFile(filepath.Join(dir, "go.mod")); err == nil {
		if path := modfile.ModulePath(data); path != "" {
			prefix, _, _ := module.SplitPathVersion(path)
			if i := strings.LastIndex(prefix, "/"); i >= 0 {
				prefix = prefix[i+1:]
			}
			if prefix != "" {
				return prefix
			}
		}
	}
	if base := filepath.Base(dir); base != "." && base != string(filepath.Separator) {
		return base
	}
	return "weave_app"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
