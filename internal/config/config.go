package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/zym9863/Dream-s-Exit/internal/localstate"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Supported store drivers.
const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the configuration for the dreams-exit service.
// Environment variables are parsed with the DREAMS_EXIT_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// auto | supabase | postgres | sqlite
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	// Supabase (hosted PostgREST)
	SupabaseURL    string `envconfig:"SUPABASE_URL" default:""`
	SupabaseKey    string `envconfig:"SUPABASE_KEY" default:""`
	SupabaseSchema string `envconfig:"SUPABASE_SCHEMA" default:"public"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// SQLite file; empty resolves to the local state directory.
	SQLitePath string `envconfig:"SQLITE_PATH" default:""`

	// Health & startup
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"10"`

	// Echo housekeeping; zero retention disables the sweeper.
	EchoRetentionHours   int `envconfig:"ECHO_RETENTION_HOURS" default:"0"`
	SweepIntervalMinutes int `envconfig:"SWEEP_INTERVAL_MINUTES" default:"60"`
}

// ResolveDefaults validates DBDriver and derives it when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		switch {
		case c.SupabaseURL != "":
			c.DBDriver = DriverSupabase
		case c.PostgresDSN != "":
			c.DBDriver = DriverPostgres
		default:
			c.DBDriver = DriverSQLite
		}
	}

	switch c.DBDriver {
	case DriverSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("DREAMS_EXIT_SUPABASE_URL and DREAMS_EXIT_SUPABASE_KEY are required when DB_DRIVER=supabase")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("DREAMS_EXIT_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			p, err := localstate.DBPath()
			if err != nil {
				return fmt.Errorf("resolve sqlite path: %w", err)
			}
			c.SQLitePath = p
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.EchoRetentionHours < 0 {
		return fmt.Errorf("ECHO_RETENTION_HOURS must be >= 0, got %d", c.EchoRetentionHours)
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Example: DREAMS_EXIT_HTTP_PORT, DREAMS_EXIT_SUPABASE_URL
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("DREAMS_EXIT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Bool("supabase_key_present", cfg.SupabaseKey != "").
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Int("echo_retention_hours", cfg.EchoRetentionHours).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		LogLevel:                  "debug",
		HTTPPort:                  8080,
		DBDriver:                  DriverSQLite,
		SupabaseSchema:            "public",
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
		BootstrapTimeoutSeconds:   2,
		SweepIntervalMinutes:      60,
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
