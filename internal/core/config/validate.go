package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
	"golang.org/x/mod/semver"

	"github.com/dropzy/dropzy/internal/core/styles"
	"github.com/dropzy/dropzy/internal/core/validate"
)

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}
	if c.API.Timeout <= 0 {
		errs = errs.Append("api.timeout", fmt.Errorf("must be positive"))
	}
	if c.API.ProbeTimeout <= 0 {
		errs = errs.Append("api.probe_timeout", fmt.Errorf("must be positive"))
	}
	if c.API.MaxRetries < 0 {
		errs = errs.Append("api.max_retries", fmt.Errorf("cannot be negative"))
	}
	if c.API.RetryBaseDelay <= 0 {
		errs = errs.Append("api.retry_base_delay", fmt.Errorf("must be positive"))
	}
	if c.API.RateLimit < 0 {
		errs = errs.Append("api.rate_limit", fmt.Errorf("cannot be negative"))
	}
	if c.API.RateBurst < 1 {
		errs = errs.Append("api.rate_burst", fmt.Errorf("must be at least 1"))
	}
	if v := c.API.MinServerVersion; v != "" && !semver.IsValid(v) && !semver.IsValid("v"+v) {
		errs = errs.Append("api.min_server_version", fmt.Errorf("%q is not a semantic version", v))
	}
	if c.Cache.TTL <= 0 {
		errs = errs.Append("cache.ttl", fmt.Errorf("must be positive"))
	}
	if c.Cache.SweepInterval <= 0 {
		errs = errs.Append("cache.sweep_interval", fmt.Errorf("must be positive"))
	}

	switch c.Relay.Reconnect {
	case ReconnectFlat, ReconnectExponential:
	default:
		errs = errs.Append("relay.reconnect", fmt.Errorf("must be %q or %q, got %q", ReconnectFlat, ReconnectExponential, c.Relay.Reconnect))
	}
	if c.Relay.MaxReconnectAttempts < 1 {
		errs = errs.Append("relay.max_reconnect_attempts", fmt.Errorf("must be at least 1"))
	}
	if c.Relay.ReconnectDelay <= 0 {
		errs = errs.Append("relay.reconnect_delay", fmt.Errorf("must be positive"))
	}
	if c.Relay.ReconnectMaxDelay < c.Relay.ReconnectDelay && c.Relay.Reconnect == ReconnectExponential {
		errs = errs.Append("relay.reconnect_max_delay", fmt.Errorf("must not be below reconnect_delay"))
	}
	if c.Relay.HeartbeatInterval <= 0 {
		errs = errs.Append("relay.heartbeat_interval", fmt.Errorf("must be positive"))
	}

	if c.Notifications.Capacity < 1 {
		errs = errs.Append("notifications.capacity", fmt.Errorf("must be at least 1"))
	}
	if c.Notifications.PollInterval <= 0 {
		errs = errs.Append("notifications.poll_interval", fmt.Errorf("must be positive"))
	}

	switch c.Auth.TokenStore {
	case TokenStoreStorage, TokenStoreKeyring:
	default:
		errs = errs.Append("auth.token_store", fmt.Errorf("must be %q or %q, got %q", TokenStoreStorage, TokenStoreKeyring, c.Auth.TokenStore))
	}

	if _, ok := styles.GetPalette(c.UI.Theme); !ok {
		errs = errs.Append("ui.theme", fmt.Errorf("unknown theme %q, available: %s", c.UI.Theme, strings.Join(styles.ThemeNames(), ", ")))
	}

	return errs.ToError()
}

// ValidateDeep performs Validate plus checks that touch the filesystem and
// parse URLs. The configPath argument is the config file location to check
// (empty string skips the config file check).
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		validate.BaseURLField("api.base_url", c.API.BaseURL),
		c.validateFallbackURL(),
	)
}

func (c *Config) validateFallbackURL() error {
	if c.API.FallbackURL == "" {
		return nil
	}
	return validate.BaseURLField("api.fallback_url", c.API.FallbackURL)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}
