package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Widget config
	assert.Equal(t, "production", cfg.Widget.Env)
	assert.Equal(t, "rewards", cfg.Widget.Mode)
	assert.Equal(t, 100, cfg.Widget.Width)
	assert.Equal(t, 100, cfg.Widget.Height)
	assert.False(t, cfg.Widget.Prefetch)

	// Cache config
	assert.Equal(t, "./data/cache", cfg.Cache.Dir)
	assert.Equal(t, 2, cfg.Cache.Workers)
	assert.Zero(t, cfg.Cache.MaxAge)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                  "9000",
		"HOST":                  "127.0.0.1",
		"WIDGET_ENV":            "stage",
		"WIDGET_APP_ID":         "2095",
		"WIDGET_MODE":           "logout",
		"WIDGET_WIDTH":          "80",
		"WIDGET_PREFETCH":       "true",
		"WIDGET_RESOURCE_HOSTS": "cdn.cere.io,.fonts.example.com",
		"CACHE_DIR":             "/tmp/widget-cache",
		"CACHE_WORKERS":         "1",
		"CACHE_MAX_AGE":         "24h",
		"PREFS_PATH":            "/tmp/prefs.db",
		"HTTP_TIMEOUT":          "5s",
		"HTTP_RPS":              "2.5",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"RATE_LIMIT_RPS":        "500",
		"RATE_LIMIT_BURST":      "1000",
		"RATE_LIMIT_ENABLED":    "false",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "stage", cfg.Widget.Env)
	assert.Equal(t, "2095", cfg.Widget.AppID)
	assert.Equal(t, "logout", cfg.Widget.Mode)
	assert.Equal(t, 80, cfg.Widget.Width)
	assert.True(t, cfg.Widget.Prefetch)
	assert.Equal(t, []string{"cdn.cere.io", ".fonts.example.com"}, cfg.Widget.ResourceHosts)

	assert.Equal(t, "/tmp/widget-cache", cfg.Cache.Dir)
	assert.Equal(t, 1, cfg.Cache.Workers)
	assert.Equal(t, 24*time.Hour, cfg.Cache.MaxAge)

	assert.Equal(t, "/tmp/prefs.db", cfg.Storage.PrefsPath)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.InDelta(t, 2.5, cfg.HTTP.RPS, 0.0001)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"invalid workers", "CACHE_WORKERS", "two"},
		{"invalid max age", "CACHE_MAX_AGE", "forever"},
		{"invalid rate limit", "RATE_LIMIT_RPS", "not-a-number"},
		{"invalid bool", "WIDGET_PREFETCH", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.Setenv(tt.key, tt.value))
			defer os.Unsetenv(tt.key)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}
