package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config with all required fields set for testing.
func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	return &cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validConfig(t).Validate())
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"negative retries", func(c *Config) { c.API.MaxRetries = -1 }, "api.max_retries"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"bad min version", func(c *Config) { c.API.MinServerVersion = "latest" }, "api.min_server_version"},
		{"zero capacity", func(c *Config) { c.Notifications.Capacity = 0 }, "notifications.capacity"},
		{"unknown policy", func(c *Config) { c.Relay.Reconnect = "linear" }, "relay.reconnect"},
		{"zero attempts", func(c *Config) { c.Relay.MaxReconnectAttempts = 0 }, "relay.max_reconnect_attempts"},
		{"unknown token store", func(c *Config) { c.Auth.TokenStore = "vault" }, "auth.token_store"},
		{
			"max delay below base",
			func(c *Config) {
				c.Relay.Reconnect = ReconnectExponential
				c.Relay.ReconnectMaxDelay = c.Relay.ReconnectDelay / 2
			},
			"relay.reconnect_max_delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			var fe criterio.FieldErrors
			require.ErrorAs(t, cfg.Validate(), &fe)
			require.Len(t, fe, 1)
			assert.Equal(t, tt.field, fe[0].Field)
		})
	}
}

func TestValidate_AcceptsUnprefixedSemver(t *testing.T) {
	cfg := validConfig(t)
	cfg.API.MinServerVersion = "1.2.0"
	assert.NoError(t, cfg.Validate())
}

func TestValidateDeep_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig(t).ValidateDeep(""))
}

func TestValidateDeep_BadURL(t *testing.T) {
	cfg := validConfig(t)
	cfg.API.BaseURL = "dropzy.app"

	var fe criterio.FieldErrors
	require.ErrorAs(t, cfg.ValidateDeep(""), &fe)
	require.Len(t, fe, 1)
	assert.Equal(t, "api.base_url", fe[0].Field)
}

func TestValidateDeep_ConfigFileIsDirectory(t *testing.T) {
	cfg := validConfig(t)

	var fe criterio.FieldErrors
	require.ErrorAs(t, cfg.ValidateDeep(t.TempDir()), &fe)
	assert.Equal(t, "config_file", fe[0].Field)
	assert.Contains(t, fe[0].Err.Error(), "is a directory")
}

func TestValidateDeep_DataDirIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	cfg.DataDir = file

	var fe criterio.FieldErrors
	require.ErrorAs(t, cfg.ValidateDeep(""), &fe)
	assert.Equal(t, "data_dir", fe[0].Field)
}
