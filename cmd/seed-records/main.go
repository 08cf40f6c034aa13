package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/flightdelay/internal/seed"
)

// Default configuration constants.
const (
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultSeed       = 1
	defaultDirtyRatio = 0.02
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service; empty skips HTTP submission")
		records   = flag.Int("records", seed.DefaultRecords, "Number of records to generate")
		batchSize = flag.Int("batch", seed.DefaultBatchSize, "Records per POST /api/records")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", seed.DefaultTimeout, "HTTP request timeout")
		days      = flag.Int("days", seed.DefaultDays, "Number of departure days")
		start     = flag.String("start", "2024-01-01", "First departure day, YYYY-MM-DD")
		seedValue = flag.Uint64("seed", defaultSeed, "Generator seed")
		dirty     = flag.Float64("dirty", defaultDirtyRatio, "Share of records with missing delay or bad timestamp")
		csvFile   = flag.String("csv", "", "Also write the data set to this CSV file")
		dsn       = flag.String("dsn", "", "Also insert the usable records into this PostgreSQL database")
		verify    = flag.Int("verify", seed.DefaultVerifyRoutes, "Routes to verify against the service")
		strict    = flag.Bool("strict", false, "Fail when a verified route disagrees")
		logFile   = flag.String("log", "", "Log file (default: seed_log_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp()
		return
	}

	startDay, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		os.Stderr.WriteString("Invalid -start: " + err.Error() + "\n")
		os.Exit(2)
	}

	closer, err := seed.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := seed.Config{
		BaseURL:      *baseURL,
		Records:      *records,
		BatchSize:    *batchSize,
		Workers:      *workers,
		Timeout:      *timeout,
		Start:        startDay,
		Days:         *days,
		Seed:         *seedValue,
		DirtyRatio:   *dirty,
		CSVFile:      *csvFile,
		DSN:          *dsn,
		Settle:       seed.DefaultSettle,
		VerifyRoutes: *verify,
		StrictVerify: *strict,
		LogFile:      *logFile,
		Verbose:      *verbose,
	}

	if _, err := seed.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Seeding failed: " + err.Error() + "\n")
		stop()
		cancel()
		_ = closer.Close()
		os.Exit(1)
	}
}
