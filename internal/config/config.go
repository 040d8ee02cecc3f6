package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Fetch      FetchConfig
	Permission PermissionConfig
	Page       PageConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
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

// FetchConfig holds external resource fetching configuration.
type FetchConfig struct {
	Enabled           bool    `envconfig:"FETCH_ENABLED" default:"true"`
	RequestsPerSecond float64 `envconfig:"FETCH_RPS" default:"10"`
}

// PermissionConfig holds permission prompt configuration.
type PermissionConfig struct {
	PromptEnabled  bool `envconfig:"PERMISSION_PROMPT" default:"false"`
	TimeoutSeconds int  `envconfig:"PERMISSION_TIMEOUT_SECONDS" default:"30"`
}

// PageConfig holds page runtime configuration.
type PageConfig struct {
	ScriptTimeoutSeconds int `envconfig:"SCRIPT_TIMEOUT_SECONDS" default:"5"`
	MaxCallStack         int `envconfig:"MAX_CALL_STACK" default:"1024"`
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
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Fetch: FetchConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
		},
		Permission: PermissionConfig{
			PromptEnabled:  false,
			TimeoutSeconds: 30,
		},
		Page: PageConfig{
			ScriptTimeoutSeconds: 5,
			MaxCallStack:         1024,
		},
	}
}
