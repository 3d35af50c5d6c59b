package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Widget    WidgetConfig
	Cache     CacheConfig
	Storage   StorageConfig
	HTTP      HTTPConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// WidgetConfig selects the widget deployment and its initial placement on screen.
// Width, Height, Top and Left are percentages of the screen.
type WidgetConfig struct {
	Env           string `envconfig:"WIDGET_ENV" default:"production"`
	AppID         string `envconfig:"WIDGET_APP_ID" default:""`
	Mode          string `envconfig:"WIDGET_MODE" default:"rewards"`
	Version       string `envconfig:"WIDGET_VERSION" default:"1.0.0"`
	Width         int    `envconfig:"WIDGET_WIDTH" default:"100"`
	Height        int    `envconfig:"WIDGET_HEIGHT" default:"100"`
	Top           int    `envconfig:"WIDGET_TOP" default:"0"`
	Left          int    `envconfig:"WIDGET_LEFT" default:"0"`
	Prefetch      bool   `envconfig:"WIDGET_PREFETCH" default:"false"`
	ContentScript string `envconfig:"WIDGET_CONTENT_SCRIPT" default:""`

	// ResourceHosts extends the hosts /resource may fetch from beyond the
	// environment's own. A leading dot admits subdomains.
	ResourceHosts []string `envconfig:"WIDGET_RESOURCE_HOSTS"`
}

// CacheConfig holds resource cache configuration.
type CacheConfig struct {
	Dir        string        `envconfig:"CACHE_DIR" default:"./data/cache"`
	Workers    int           `envconfig:"CACHE_WORKERS" default:"2"`
	MaxAge     time.Duration `envconfig:"CACHE_MAX_AGE" default:"0"`
	PolicyFile string        `envconfig:"CACHE_POLICY_FILE" default:""`
}

// StorageConfig holds the preferences database location.
type StorageConfig struct {
	PrefsPath string `envconfig:"PREFS_PATH" default:"./data/prefs.db"`
}

// HTTPConfig holds outbound HTTP client configuration.
type HTTPConfig struct {
	Timeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	Retries int           `envconfig:"HTTP_RETRIES" default:"3"`
	RPS     float64       `envconfig:"HTTP_RPS" default:"20"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Widget: WidgetConfig{
			Env:     "production",
			Mode:    "rewards",
			Version: "1.0.0",
			Width:   100,
			Height:  100,
		},
		Cache: CacheConfig{
			Dir:     "./data/cache",
			Workers: 2,
		},
		Storage: StorageConfig{
			PrefsPath: "./data/prefs.db",
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
			Retries: 3,
			RPS:     20,
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
	}
}
