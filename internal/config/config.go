// Package config loads lorebook's YAML configuration and applies
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendSupabase = "supabase"
	BackendLocal    = "local"
)

// Config holds all lorebook configuration.
type Config struct {
	// Entity store and authentication backend
	Store StoreConfig `yaml:"store"`

	// Generative model
	Generation GenerationConfig `yaml:"generation"`

	// Persisted sign-in session
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Terminal UI
	UI UIConfig `yaml:"ui"`
}

// StoreConfig selects and configures the backend that stores entities and
// authenticates users. Supabase needs URL and AnonKey; local needs only
// DatabasePath.
type StoreConfig struct {
	Backend      string `yaml:"backend"` // supabase, local
	URL          string `yaml:"url"`
	AnonKey      string `yaml:"anon_key"`
	DatabasePath string `yaml:"database_path"`
	Timeout      string `yaml:"timeout"`
}

// GenerationConfig configures the Gemini client.
type GenerationConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// SessionConfig configures where the session is persisted.
type SessionConfig struct {
	Path string `yaml:"path"`
	// SecretPath holds the signing key for locally issued tokens.
	SecretPath string `yaml:"secret_path"`
	// TTL applies to locally issued access tokens.
	TTL string `yaml:"ttl"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no logging (production)
	JSONFormat bool            `yaml:"json_format"`
	Dir        string          `yaml:"dir"`
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	Theme string `yaml:"theme"` // auto, light, dark
}

// Home returns the lorebook data directory: $LOREBOOK_HOME or ~/.lorebook.
func Home() string {
	if dir := os.Getenv("LOREBOOK_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lorebook"
	}
	return filepath.Join(home, ".lorebook")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Home(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home := Home()
	return &Config{
		Store: StoreConfig{
			Backend:      BackendSupabase,
			DatabasePath: filepath.Join(home, "lorebook.db"),
			Timeout:      "30s",
		},
		Generation: GenerationConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "120s",
		},
		Session: SessionConfig{
			Path:       filepath.Join(home, "session.json"),
			SecretPath: filepath.Join(home, "local.key"),
			TTL:        "1h",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   filepath.Join(home, "logs"),
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg, nil
}

// Save saves configuration to a YAML file. The file holds secrets, so it is
// written owner-only.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Generation key: API_KEY is the name the hosted app used
	if key := os.Getenv("API_KEY"); key != "" {
		c.Generation.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Generation.APIKey = key
	}

	// Store endpoint and key, VITE_ names kept for existing .env files
	if url := os.Getenv("VITE_SUPABASE_URL"); url != "" {
		c.Store.URL = url
	}
	if url := os.Getenv("SUPABASE_URL"); url != "" {
		c.Store.URL = url
	}
	if key := os.Getenv("VITE_SUPABASE_ANON_KEY"); key != "" {
		c.Store.AnonKey = key
	}
	if key := os.Getenv("SUPABASE_ANON_KEY"); key != "" {
		c.Store.AnonKey = key
	}

	if backend := os.Getenv("LOREBOOK_BACKEND"); backend != "" {
		c.Store.Backend = backend
	}
	if path := os.Getenv("LOREBOOK_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

func (c *Config) normalize() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSupabase
	}
	c.Store.URL = strings.TrimRight(strings.TrimSpace(c.Store.URL), "/")
	c.Store.AnonKey = strings.TrimSpace(c.Store.AnonKey)
	c.Generation.APIKey = strings.TrimSpace(c.Generation.APIKey)
}

// Validate reports configuration that can never work. Missing credentials
// are not an error here: the clients fail fast on use instead.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSupabase, BackendLocal:
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", c.Store.Backend, BackendSupabase, BackendLocal)
	}
	if c.Store.Backend == BackendLocal && c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is required for the local backend")
	}
	return nil
}

// StoreConfigured reports whether the selected backend has everything it
// needs to make calls.
func (c *Config) StoreConfigured() bool {
	if c.Store.Backend == BackendLocal {
		return c.Store.DatabasePath != ""
	}
	return c.Store.URL != "" && c.Store.AnonKey != ""
}

// GetStoreTimeout returns the store timeout as a duration.
func (c *Config) GetStoreTimeout() time.Duration {
	return parseDuration(c.Store.Timeout, 30*time.Second)
}

// GetGenerationTimeout returns the generation timeout as a duration.
func (c *Config) GetGenerationTimeout() time.Duration {
	return parseDuration(c.Generation.Timeout, 120*time.Second)
}

// GetSessionTTL returns the lifetime of locally issued tokens.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Session.TTL, time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
