package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the companion service.
// Environment variables are parsed from the COMPANION_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// Storage
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/companion.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"11545"`
	MCPPort  int `envconfig:"MCP_PORT" default:"11546"`

	// Scheduling policy
	TimeZone             string `envconfig:"TIME_ZONE" default:"UTC"`
	DailyCap             int    `envconfig:"DAILY_CAP" default:"5"`
	MinWords             int    `envconfig:"MIN_WORDS" default:"20"`
	MaxWords             int    `envconfig:"MAX_WORDS" default:"30"`
	DifficultyDropStreak int    `envconfig:"DIFFICULTY_DROP_STREAK" default:"2"`

	// Dispatch of gate events and async analyses
	ResponderURL        string `envconfig:"RESPONDER_URL" default:""`
	DispatchShards      int    `envconfig:"DISPATCH_SHARDS" default:"4"`
	DispatchQueueSize   int    `envconfig:"DISPATCH_QUEUE_SIZE" default:"128"`
	DispatchMaxAttempts int    `envconfig:"DISPATCH_MAX_ATTEMPTS" default:"5"`

	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"5"`

	location *time.Location
}

// ResolveDefaults validates the driver, policy bounds and time zone.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "", "auto":
		c.DBDriver = "sqlite"
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when DB_DRIVER=postgres")
	}
	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER=sqlite")
	}
	if c.DailyCap <= 0 {
		return fmt.Errorf("DAILY_CAP must be positive, got %d", c.DailyCap)
	}
	if c.MinWords < 0 || c.MaxWords <= 0 || c.MinWords > c.MaxWords {
		return fmt.Errorf("invalid word bounds: MIN_WORDS=%d MAX_WORDS=%d", c.MinWords, c.MaxWords)
	}
	if c.DifficultyDropStreak < 0 {
		return fmt.Errorf("DIFFICULTY_DROP_STREAK must not be negative")
	}
	if c.DispatchShards <= 0 {
		c.DispatchShards = 4
	}
	if c.DispatchQueueSize <= 0 {
		c.DispatchQueueSize = 128
	}
	if c.DispatchMaxAttempts <= 0 {
		c.DispatchMaxAttempts = 5
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	c.location = loc
	return nil
}

// New creates a new Config by parsing environment variables
// Example: COMPANION_DB_DRIVER, COMPANION_HTTP_PORT
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("COMPANION", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("time_zone", cfg.TimeZone).
		Int("daily_cap", cfg.DailyCap).
		Int("min_words", cfg.MinWords).
		Int("max_words", cfg.MaxWords).
		Int("difficulty_drop_streak", cfg.DifficultyDropStreak).
		Bool("responder_configured", cfg.ResponderURL != "").
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config backed by an in-memory sqlite database.
func NewForTesting() *Config {
	cfg := &Config{
		Environment:               EnvTesting,
		LogLevel:                  "debug",
		DBDriver:                  "sqlite",
		SQLitePath:                ":memory:",
		HTTPPort:                  11545,
		MCPPort:                   11546,
		TimeZone:                  "UTC",
		DailyCap:                  5,
		MinWords:                  20,
		MaxWords:                  30,
		DifficultyDropStreak:      2,
		DispatchShards:            2,
		DispatchQueueSize:         16,
		DispatchMaxAttempts:       3,
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 2,
		BootstrapTimeoutSeconds:   5,
		location:                  time.UTC,
	}
	return cfg
}

// Location returns the zone used for calendar-day boundaries.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetMCPAddr returns the MCP streamable HTTP address
func (c *Config) GetMCPAddr() string {
	return fmt.Sprintf(":%d", c.MCPPort)
}
