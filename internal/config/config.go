// Package config provides configuration management for the skyfoto STAC API.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	STAC     STACConfig     `envPrefix:"STAC_"`
	Search   SearchConfig   `envPrefix:"SEARCH_"`
	Logging  LoggingConfig  `envPrefix:"LOG_"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig contains catalog database configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" gives an ephemeral catalog.
	Path string `env:"PATH" envDefault:"./skyfotos.db"`
}

// STACConfig contains STAC API metadata configuration.
type STACConfig struct {
	Version     string `env:"VERSION" envDefault:"1.0.0"`
	BaseURL     string `env:"BASE_URL"` // Public-facing URL (required)
	Title       string `env:"TITLE" envDefault:"Skyfoto STAC API"`
	Description string `env:"DESCRIPTION" envDefault:"Search API for the oblique aerial photo catalog"`
}

// SearchConfig contains search behavior configuration.
//
// The values are read once at startup and threaded into the normalizer and
// result assembler as plain values; nothing mutates them afterwards.
type SearchConfig struct {
	DefaultLimit int `env:"DEFAULT_LIMIT" envDefault:"10"`
	MaxLimit     int `env:"MAX_LIMIT" envDefault:"1000"`

	// EnableContext turns on the context block (returned/limit/matched).
	// The matched count is a separate COUNT query, so it costs an extra
	// round-trip per search.
	EnableContext    bool `env:"ENABLE_CONTEXT" envDefault:"true"`
	EnableQueryables bool `env:"ENABLE_QUERYABLES" envDefault:"true"`
	EnableFields     bool `env:"ENABLE_FIELDS" envDefault:"true"`

	// DefaultIncludes are always present in responses regardless of any
	// fields projection the client sends.
	DefaultIncludes []string `env:"DEFAULT_INCLUDES" envSeparator:"," envDefault:"id,type,geometry,bbox,links,assets,collection,properties.datetime"`

	// RemovedOperators are filter operators withdrawn from the allowed
	// vocabulary even though the grammar can parse them.
	RemovedOperators []string `env:"REMOVED_OPERATORS" envSeparator:"," envDefault:"meets,metby"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.STAC.BaseURL == "" {
		return fmt.Errorf("STAC base URL is required")
	}

	if c.STAC.Version == "" {
		return fmt.Errorf("STAC version is required")
	}

	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("default limit must be positive, got %d", c.Search.DefaultLimit)
	}

	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("max limit (%d) must not be below default limit (%d)",
			c.Search.MaxLimit, c.Search.DefaultLimit)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

// Addr returns the host:port address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
