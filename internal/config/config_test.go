package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.True(t, cfg.Fetch.Enabled)
	assert.Equal(t, 10.0, cfg.Fetch.RequestsPerSecond)

	assert.False(t, cfg.Permission.PromptEnabled)
	assert.Equal(t, 30, cfg.Permission.TimeoutSeconds)

	assert.Equal(t, 5, cfg.Page.ScriptTimeoutSeconds)
	assert.Equal(t, 1024, cfg.Page.MaxCallStack)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	require.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnvironment(t *testing.T) {
	envVars := map[string]string{
		"PORT":               "9000",
		"HOST":               "127.0.0.1",
		"LOG_LEVEL":          "debug",
		"RATE_LIMIT_ENABLED": "false",
		"FETCH_ENABLED":      "false",
		"PERMISSION_PROMPT":  "true",
	}
	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.Fetch.Enabled)
	assert.True(t, cfg.Permission.PromptEnabled)
}

func TestLoadDefaultsWhenUnset(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 30, cfg.Permission.TimeoutSeconds)
}
