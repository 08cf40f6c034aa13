package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/okian/flightdelay/internal/adapters/source/csvsource"
	"github.com/okian/flightdelay/internal/adapters/source/pgsource"
	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/internal/domain/normalize"
	"github.com/okian/flightdelay/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run generates the data set and sends it to every configured destination.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	cfg = cfg.withDefaults()
	stats := &Stats{RunID: uuid.NewString(), StartTime: time.Now()}
	log := logger.Get().Named("seed").With(logger.String("run", stats.RunID))

	log.Info(ctx, "starting seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("records", cfg.Records),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed),
		logger.String("csv", cfg.CSVFile),
		logger.Bool("postgres", cfg.DSN != ""))

	var client *HTTPClient
	if cfg.BaseURL != "" {
		client = NewHTTPClient(cfg.BaseURL, cfg.Timeout)
		if err := client.Health(ctx); err != nil {
			return stats, fmt.Errorf("service health check failed: %w", err)
		}
		log.Info(ctx, "service is healthy")
	}

	inputs, err := NewGenerator(cfg).Generate(ctx)
	if err != nil {
		return stats, fmt.Errorf("generation failed: %w", err)
	}
	stats.RecordsGenerated = len(inputs)
	records := Normalized(ctx, inputs)

	if cfg.CSVFile != "" {
		if err := writeCSV(cfg.CSVFile, inputs); err != nil {
			return stats, fmt.Errorf("csv export failed: %w", err)
		}
		log.Info(ctx, "records written to csv", logger.String("file", cfg.CSVFile), logger.Int("records", len(inputs)))
	}

	if cfg.DSN != "" {
		n, err := insertPostgres(ctx, cfg.DSN, records)
		if err != nil {
			return stats, fmt.Errorf("postgres load failed: %w", err)
		}
		stats.RecordsWritten = n
		log.Info(ctx, "records inserted into postgres", logger.Int("records", n))
	}

	if client != nil {
		if err := submitRecords(ctx, cfg, client, inputs, stats); err != nil {
			return stats, fmt.Errorf("submission failed: %w", err)
		}

		log.Info(ctx, "waiting for records to be applied", logger.Duration("settle", cfg.Settle))
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-time.After(cfg.Settle):
		}

		if err := verifyResults(ctx, cfg, client, Expectations(records, cfg.VerifyRoutes), stats); err != nil {
			return stats, fmt.Errorf("verification failed: %w", err)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// writeCSV writes every input in the dataset layout. Dirty inputs are
// converted leniently and keep their empty cells.
func writeCSV(path string, inputs []normalize.Input) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	n := normalize.New()
	records := make([]model.FlightRecord, len(inputs))
	for i, in := range inputs {
		records[i] = n.Lenient(in)
	}
	return csvsource.Write(f, records)
}

func insertPostgres(ctx context.Context, dsn string, records []model.FlightRecord) (int, error) {
	store, err := pgsource.Open(ctx, dsn)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	return store.Insert(ctx, records)
}

// displayFinalStats logs the run summary.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, recordsPerSecond float64
	if stats.RecordsGenerated > 0 {
		acceptRate = float64(stats.RecordsAccepted) / float64(stats.RecordsGenerated) * percentageMultiplier
	}
	if stats.Duration > 0 {
		recordsPerSecond = float64(stats.RecordsGenerated) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("recordsGenerated", stats.RecordsGenerated),
		logger.Int("batchesSubmitted", stats.BatchesSubmitted),
		logger.Int("batchesThrottled", stats.BatchesThrottled),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.Int("recordsAccepted", stats.RecordsAccepted),
		logger.Int("recordsDuplicate", stats.RecordsDuplicate),
		logger.Int("recordsRejected", stats.RecordsRejected),
		logger.Int("recordsWritten", stats.RecordsWritten),
		logger.Int("routesVerified", stats.RoutesVerified),
		logger.Int("routesMismatched", stats.RoutesMismatched),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("recordsPerSecond", recordsPerSecond))
}
