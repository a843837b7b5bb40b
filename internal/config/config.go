// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - External errors are wrapped with ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"runtime"
)

// Supported values for DBDriver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory queue of scored assessments.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of persistence workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the set of remembered submission ids.
	DedupeSize int `koanf:"dedupe_size"`

	// DBDriver is sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is the driver specific data source name.
	DBDSN string `koanf:"db_dsn"`

	// DefaultLocale is used when neither the request nor the instrument names one.
	DefaultLocale string `koanf:"default_locale"`

	// MaxHistoryLimit caps GET /subjects/{id}/assessments?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// CORSOrigins lists the origins allowed by the CORS middleware.
	CORSOrigins []string `koanf:"cors_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		QueueSize:       10_000,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      50_000,
		DBDriver:        DriverSQLite,
		DBDSN:           "file:moodscale.db?_pragma=busy_timeout(5000)",
		DefaultLocale:   "fr",
		MaxHistoryLimit: 100,
		CORSOrigins:     []string{"*"},
	}
}
