// Package config handles configuration loading and validation for dropzy.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropzy/dropzy/internal/core/styles"
)

// Reconnect policy names.
const (
	ReconnectFlat        = "flat"
	ReconnectExponential = "exponential"
)

// Token store backends.
const (
	TokenStoreStorage = "storage"
	TokenStoreKeyring = "keyring"
)

// Config holds the application configuration.
type Config struct {
	API           APIConfig           `yaml:"api"`
	Cache         CacheConfig         `yaml:"cache"`
	Relay         RelayConfig         `yaml:"relay"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Auth          AuthConfig          `yaml:"auth"`
	Database      DatabaseConfig      `yaml:"database"`
	Debug         DebugConfig         `yaml:"debug"`
	UI            UIConfig            `yaml:"ui"`
	DataDir       string              `yaml:"-"` // set by caller, not from config file
}

// APIConfig configures the resilient API client.
type APIConfig struct {
	BaseURL          string        `yaml:"base_url"`
	FallbackURL      string        `yaml:"fallback_url"`
	Timeout          time.Duration `yaml:"timeout"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	RateLimit        float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst        int           `yaml:"rate_burst"`
	MinServerVersion string        `yaml:"min_server_version"`
}

// CacheConfig configures the local response cache.
type CacheConfig struct {
	Enabled       *bool         `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// IsEnabled returns whether response caching is on. Defaults to true.
func (c CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// RelayConfig configures the realtime event relay.
type RelayConfig struct {
	Reconnect            string        `yaml:"reconnect"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
}

// NotificationsConfig configures the local notification ledger.
type NotificationsConfig struct {
	Capacity     int           `yaml:"capacity"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// AuthConfig selects where the session token is kept.
type AuthConfig struct {
	TokenStore string `yaml:"token_store"`
}

// DatabaseConfig tunes the SQLite device store.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"` // milliseconds
}

// DebugConfig enables the pprof and metrics endpoint.
type DebugConfig struct {
	Addr string `yaml:"addr"`
}

// UIConfig controls terminal output.
type UIConfig struct {
	Theme string `yaml:"theme"`
	Bell  bool   `yaml:"bell"` // ring the terminal bell on new notifications in watch
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "https://dropzy.app",
			FallbackURL:    "http://dropzy.app",
			Timeout:        10 * time.Second,
			ProbeTimeout:   5 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
			RateBurst:      1,
		},
		Cache: CacheConfig{
			TTL:           5 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Relay: RelayConfig{
			Reconnect:            ReconnectFlat,
			ReconnectDelay:       3 * time.Second,
			ReconnectMaxDelay:    5 * time.Second,
			MaxReconnectAttempts: 5,
			HeartbeatInterval:    30 * time.Second,
			HandshakeTimeout:     10 * time.Second,
		},
		Notifications: NotificationsConfig{
			Capacity:     100,
			PollInterval: 60 * time.Second,
		},
		Auth: AuthConfig{
			TokenStore: TokenStoreStorage,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 4,
			MaxIdleConns: 2,
			BusyTimeout:  5000,
		},
		UI: UIConfig{
			Theme: styles.DefaultTheme,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	d := DefaultConfig()

	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = d.API.Timeout
	}
	if c.API.ProbeTimeout == 0 {
		c.API.ProbeTimeout = d.API.ProbeTimeout
	}
	if c.API.RetryBaseDelay == 0 {
		c.API.RetryBaseDelay = d.API.RetryBaseDelay
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = d.API.RateBurst
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = d.Cache.SweepInterval
	}
	if c.Relay.Reconnect == "" {
		c.Relay.Reconnect = d.Relay.Reconnect
	}
	if c.Relay.ReconnectDelay == 0 {
		c.Relay.ReconnectDelay = d.Relay.ReconnectDelay
	}
	if c.Relay.ReconnectMaxDelay == 0 {
		c.Relay.ReconnectMaxDelay = d.Relay.ReconnectMaxDelay
	}
	if c.Relay.MaxReconnectAttempts == 0 {
		c.Relay.MaxReconnectAttempts = d.Relay.MaxReconnectAttempts
	}
	if c.Relay.HeartbeatInterval == 0 {
		c.Relay.HeartbeatInterval = d.Relay.HeartbeatInterval
	}
	if c.Relay.HandshakeTimeout == 0 {
		c.Relay.HandshakeTimeout = d.Relay.HandshakeTimeout
	}
	if c.Notifications.Capacity == 0 {
		c.Notifications.Capacity = d.Notifications.Capacity
	}
	if c.Notifications.PollInterval == 0 {
		c.Notifications.PollInterval = d.Notifications.PollInterval
	}
	if c.Auth.TokenStore == "" {
		c.Auth.TokenStore = d.Auth.TokenStore
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = d.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = d.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = d.Database.BusyTimeout
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}
