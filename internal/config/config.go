// Package config defines service configuration and how it is loaded.
//
// Values are layered: defaults from New, then an optional YAML file, then
// FLIGHTDELAY_* environment variables. A .env file is read into the process
// environment first so local secrets can stay out of the shell.
package config

import (
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/okian/flightdelay/internal/domain/stats"
)

// Record sources.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
	SourceMemory   = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Source selects where records are loaded from: csv, postgres or memory.
	Source string `koanf:"source"`

	// DatasetPath is the CSV file read when Source is csv.
	DatasetPath string `koanf:"dataset_path"`

	// PostgresDSN is used when Source is postgres. Ingested batches are also
	// written back to it.
	PostgresDSN string `koanf:"postgres_dsn"`

	// QueueSize bounds the number of queued ingestion batches.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the remembered record keys. Keys are never evicted;
	// once the bound is reached new records are rejected as capacity_exceeded.
	// A loaded dataset larger than the bound raises it.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxRecordsLimit caps GET /api/flights?limit.
	MaxRecordsLimit int `koanf:"max_records_limit"`

	// MaxBatchSize caps the records accepted by one POST /api/records.
	MaxBatchSize int `koanf:"max_batch_size"`

	// LateThresholdMinutes marks a flight late on the route map.
	LateThresholdMinutes float64 `koanf:"late_threshold_minutes"`

	// UnusualWeather lists the conditions used by the weather endpoints.
	UnusualWeather []string `koanf:"unusual_weather"`

	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables
	// rate limiting.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// SnapshotInterval is how often ingested records become visible.
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		Source:               SourceCSV,
		DatasetPath:          "flight_weather_analysis_data.csv",
		QueueSize:            1024,
		WorkerCount:          runtime.NumCPU(),
		DedupeSize:           500_000,
		MaxRecordsLimit:      5000,
		MaxBatchSize:         1000,
		LateThresholdMinutes: 15,
		UnusualWeather:       slices.Clone(stats.DefaultUnusualWeather),
		CORSOrigins:          []string{"*"},
		RateLimitRequests:    600,
		RateLimitWindow:      time.Minute,
		SnapshotInterval:     500 * time.Millisecond,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.MaxRecordsLimit <= 0:
		return fmt.Errorf("%w: max_records_limit must be positive", ErrInvalidConfig)
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("%w: max_batch_size must be positive", ErrInvalidConfig)
	case c.LateThresholdMinutes < 0:
		return fmt.Errorf("%w: late_threshold_minutes must not be negative", ErrInvalidConfig)
	case c.RateLimitRequests < 0:
		return fmt.Errorf("%w: rate_limit_requests must not be negative", ErrInvalidConfig)
	case c.RateLimitRequests > 0 && c.RateLimitWindow <= 0:
		return fmt.Errorf("%w: rate_limit_window must be positive when rate limiting", ErrInvalidConfig)
	case len(c.UnusualWeather) == 0:
		return fmt.Errorf("%w: unusual_weather must list at least one condition", ErrInvalidConfig)
	case c.SnapshotInterval < 0:
		return fmt.Errorf("%w: snapshot_interval must not be negative", ErrInvalidConfig)
	}

	switch c.Source {
	case SourceCSV:
		if c.DatasetPath == "" {
			return fmt.Errorf("%w: dataset_path is required for the csv source", ErrInvalidConfig)
		}
	case SourcePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres source", ErrInvalidConfig)
		}
	case SourceMemory:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}
	return nil
}
