// Package policy loads server configuration and answers policy questions
// (enabled tools, payload limits, file locations).
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// EnvPrefix prefixes every environment override, e.g. SKETCHSTORE_HTTP_PORT.
const EnvPrefix = "SKETCHSTORE_"

const (
	defaultHTTPPort       = 3000
	defaultMaxBodyBytes   = 64 << 20
	defaultSaveDebounceMs = 500
	defaultPersistenceKey = "vidext-editor"
)

// GlobalStateDir returns the default global state directory (~/.config/sketchstore).
func GlobalStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "sketchstore")
}

// StoreConfig selects the snapshot backend.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"` // memory (default) or sqlite
	Path   string `yaml:"path" env:"PATH"`     // sqlite file or file: URI; empty = in-memory sqlite
}

// Config holds server configuration.
type Config struct {
	HTTPPort       int         `yaml:"http_port" env:"HTTP_PORT"`
	Store          StoreConfig `yaml:"store" envPrefix:"STORE_"`
	LogFile        string      `yaml:"log_file" env:"LOG_FILE"`
	SignalFile     string      `yaml:"signal_file" env:"SIGNAL_FILE"`
	EnabledTools   []string    `yaml:"enabled_tools" env:"ENABLED_TOOLS" envSeparator:","`
	MaxBodyBytes   int64       `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	SaveDebounceMs int         `yaml:"save_debounce_ms" env:"SAVE_DEBOUNCE_MS"`
	PersistenceKey string      `yaml:"persistence_key" env:"PERSISTENCE_KEY"`
	CORSOrigin     string      `yaml:"cors_origin" env:"CORS_ORIGIN"`
}

// DefaultConfig returns sensible defaults: in-memory store on port 3000.
func DefaultConfig() *Config {
	return &Config{
		HTTPPort:       defaultHTTPPort,
		Store:          StoreConfig{Driver: DriverMemory},
		EnabledTools:   []string{"*"},
		MaxBodyBytes:   defaultMaxBodyBytes,
		SaveDebounceMs: defaultSaveDebounceMs,
		PersistenceKey: defaultPersistenceKey,
		CORSOrigin:     "*",
	}
}

// LoadConfig loads configuration from a YAML file on top of DefaultConfig.
// Environment overrides are not applied; see ApplyEnv.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// ApplyEnv overrides cfg with SKETCHSTORE_* environment variables.
// Variables that are not set leave the field untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	cfg.fillDefaults()
	return nil
}

// fillDefaults restores defaults for fields a config file zeroed out.
func (c *Config) fillDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.SaveDebounceMs <= 0 {
		c.SaveDebounceMs = defaultSaveDebounceMs
	}
	if c.PersistenceKey == "" {
		c.PersistenceKey = defaultPersistenceKey
	}
}

// Validate reports configuration that cannot be served.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("store.driver %q: want %s or %s", c.Store.Driver, DriverMemory, DriverSQLite)
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", c.HTTPPort)
	}
	return nil
}

// Policy answers configuration questions for the running server.
type Policy struct {
	config *Config
	mu     sync.RWMutex
}

// New creates a new policy for cfg.
func New(cfg *Config) *Policy {
	return &Policy{config: cfg}
}

// Config returns a copy of the underlying configuration.
func (p *Policy) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c := *p.config
	c.EnabledTools = append([]string(nil), p.config.EnabledTools...)
	return c
}

// HTTPPort returns the configured listen port (0 = auto-assign).
func (p *Policy) HTTPPort() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.HTTPPort
}

// Store returns the snapshot backend configuration.
func (p *Policy) Store() StoreConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.Store
}

// SignalFilePath returns the path to the notify signal file.
// Defaults to a file next to the sqlite database; the memory store has no
// other process to signal, so it gets none unless one is configured.
func (p *Policy) SignalFilePath() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.config.SignalFile != "" {
		return p.config.SignalFile
	}
	st := p.config.Store
	if st.Driver != DriverSQLite || st.Path == "" || strings.HasPrefix(st.Path, "file:") || st.Path == ":memory:" {
		return ""
	}
	return filepath.Join(filepath.Dir(st.Path), ".sketchstore-notify")
}

// LogFile returns the configured log file path.
// If unset, defaults to ~/.config/sketchstore/sketchstore.log.
// Set to "none" or "off" to disable file logging entirely.
func (p *Policy) LogFile() string {
	p.mu.RLock()
	lf := p.config.LogFile
	p.mu.RUnlock()

	if lf == "" {
		return filepath.Join(GlobalStateDir(), "sketchstore.log")
	}
	return lf
}

// IsToolEnabled checks if a tool is enabled
func (p *Policy) IsToolEnabled(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.config.EnabledTools {
		if t == "*" || t == name {
			return true
		}
	}
	return false
}

// MaxBodyBytes returns the largest accepted request body.
func (p *Policy) MaxBodyBytes() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.MaxBodyBytes
}

// SaveDebounce returns how long the editor waits after the last change before saving.
func (p *Policy) SaveDebounce() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Duration(p.config.SaveDebounceMs) * time.Millisecond
}

// PersistenceKey returns the whiteboard widget's local persistence key.
func (p *Policy) PersistenceKey() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.PersistenceKey
}

// CORSOrigin returns the Access-Control-Allow-Origin value; empty disables CORS headers.
func (p *Policy) CORSOrigin() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.CORSOrigin
}
