package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
)

// FileEnv names the environment variable pointing at the TOML overlay
const FileEnv = "WIDGETHOST_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Widgets    WidgetConfig
	Capability CapabilityConfig
	State      StateConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8420"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-IP HTTP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// WidgetConfig holds supervisor configuration.
type WidgetConfig struct {
	Dir          string        `envconfig:"WIDGETS_DIR" default:"./widgets"`
	MaxInstances int           `envconfig:"WIDGET_MAX_INSTANCES" default:"10"`
	FadeIn       time.Duration `envconfig:"WIDGET_FADE_IN" default:"150ms"`
	FadeOut      time.Duration `envconfig:"WIDGET_FADE_OUT" default:"150ms"`
	CallTimeout  time.Duration `envconfig:"WIDGET_CALL_TIMEOUT" default:"5s"`
}

// CapabilityConfig holds capability rate limiting and prompt configuration.
type CapabilityConfig struct {
	RateLimit     int           `envconfig:"CAPABILITY_RATE_LIMIT" default:"10"`
	RateWindow    time.Duration `envconfig:"CAPABILITY_RATE_WINDOW" default:"1s"`
	SweepInterval time.Duration `envconfig:"RATE_SWEEP_INTERVAL" default:"5m"`
	EntryTTL      time.Duration `envconfig:"RATE_ENTRY_TTL" default:"1m"`
	PromptTimeout time.Duration `envconfig:"PERMISSION_PROMPT_TIMEOUT" default:"30s"`
}

// StateConfig holds persistence configuration.
type StateConfig struct {
	DBPath      string        `envconfig:"STATE_DB_PATH" default:"./widgethost.db"`
	Debounce    time.Duration `envconfig:"STATE_DEBOUNCE" default:"500ms"`
	AutoRestore bool          `envconfig:"AUTO_RESTORE" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFile loads the environment configuration and overlays the TOML
// file at path. An empty path skips the overlay.
func LoadWithFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.Overlay(data); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := LoadWithFile(os.Getenv(FileEnv))
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8420",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Widgets: WidgetConfig{
			Dir:          "./widgets",
			MaxInstances: 10,
			FadeIn:       150 * time.Millisecond,
			FadeOut:      150 * time.Millisecond,
			CallTimeout:  5 * time.Second,
		},
		Capability: CapabilityConfig{
			RateLimit:     10,
			RateWindow:    time.Second,
			SweepInterval: 5 * time.Minute,
			EntryTTL:      time.Minute,
			PromptTimeout: 30 * time.Second,
		},
		State: StateConfig{
			DBPath:      "./widgethost.db",
			Debounce:    500 * time.Millisecond,
			AutoRestore: true,
		},
	}
}

// Validate rejects configurations the host cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Widgets.MaxInstances < 1:
		return errs.New(errs.KindInvalidConfig, "max instances must be positive, got %d", c.Widgets.MaxInstances)
	case c.Capability.RateLimit < 1:
		return errs.New(errs.KindInvalidConfig, "capability rate limit must be positive, got %d", c.Capability.RateLimit)
	case c.Capability.RateWindow <= 0:
		return errs.New(errs.KindInvalidConfig, "capability rate window must be positive")
	case c.Capability.SweepInterval <= 0 || c.Capability.EntryTTL <= 0:
		return errs.New(errs.KindInvalidConfig, "rate sweep interval and entry ttl must be positive")
	case c.Capability.PromptTimeout <= 0:
		return errs.New(errs.KindInvalidConfig, "permission prompt timeout must be positive")
	case c.State.Debounce <= 0:
		return errs.New(errs.KindInvalidConfig, "state debounce must be positive")
	case c.State.DBPath == "":
		return errs.New(errs.KindInvalidConfig, "state db path is required")
	}
	return nil
}
