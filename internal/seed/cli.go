package seed

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/flightdelay/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the global logger writing to both stdout and a
// log file. If logFile is empty, a timestamped filename is generated. The
// returned closer releases the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "seed_log_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWith(io.MultiWriter(os.Stdout, file), logger.FormatText); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return file, nil
}

// ShowHelp prints usage information for the seeding tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Flight Delay Seeder
===================

Generates a reproducible synthetic flight data set and loads it into the
flight delay service, a CSV file or PostgreSQL.

Usage:
  go run ./cmd/seed-records [options]

Options:
  -url string
        Base URL of the service; empty skips HTTP submission (default "http://localhost:9080")
  -records int
        Number of records to generate (default 5000)
  -batch int
        Records per POST /api/records (default 250)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -days int
        Number of departure days (default 30)
  -start string
        First departure day, YYYY-MM-DD (default 2024-01-01)
  -seed uint
        Generator seed (default 1)
  -dirty float
        Share of records with missing delay or bad timestamp (default 0.02)
  -csv string
        Also write the data set to this CSV file
  -dsn string
        Also insert the usable records into this PostgreSQL database
  -verify int
        Routes to verify against the service (default 10)
  -strict
        Fail when a verified route disagrees
  -log string
        Log file (default: seed_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Seed a local service
  go run ./cmd/seed-records

  # Write a CSV for FLIGHTDELAY_DATASET without a running service
  go run ./cmd/seed-records -url "" -records 20000 -csv data/flights.csv

  # Seed PostgreSQL and the service, failing on any disagreement
  go run ./cmd/seed-records -dsn postgres://localhost/flights?sslmode=disable -strict
`)
}
