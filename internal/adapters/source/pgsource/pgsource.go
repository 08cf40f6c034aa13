// Package pgsource loads and persists flight records in PostgreSQL.
package pgsource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/okian/flightdelay/internal/adapters/source"
	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/pkg/logger"
	"github.com/okian/flightdelay/pkg/metrics"
)

const (
	defaultPingAttempts = 10
	defaultPingDelay    = 2 * time.Second
	defaultBatchSize    = 200
	insertColumns       = 12
)

const schema = `
	CREATE TABLE IF NOT EXISTS flight_records (
		id                    BIGSERIAL PRIMARY KEY,
		flight_number         VARCHAR(16)  NOT NULL,
		departure_airport     VARCHAR(8)   NOT NULL,
		arrival_airport       VARCHAR(8)   NOT NULL,
		airline               TEXT         NOT NULL DEFAULT '',
		departure_time        TIMESTAMPTZ,
		utc_offset_seconds    INTEGER,
		delay_minutes         DOUBLE PRECISION,
		status                TEXT         NOT NULL DEFAULT '',
		weather_condition     TEXT         NOT NULL DEFAULT '',
		delay_reason          TEXT         NOT NULL DEFAULT '',
		geomagnetic_kp_index  DOUBLE PRECISION,
		solar_flare_intensity TEXT         NOT NULL DEFAULT '',
		created_at            TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		UNIQUE (flight_number, departure_airport, arrival_airport, departure_time)
	);

	ALTER TABLE flight_records ADD COLUMN IF NOT EXISTS utc_offset_seconds INTEGER;

	CREATE INDEX IF NOT EXISTS idx_flight_records_route
		ON flight_records(departure_airport, arrival_airport);
	CREATE INDEX IF NOT EXISTS idx_flight_records_departure_time
		ON flight_records(departure_time);
`

// Store reads and writes the flight_records table.
type Store struct {
	db        *sql.DB
	batchSize int
	logger    logger.Logger
}

type openConfig struct {
	attempts  int
	delay     time.Duration
	batchSize int
	logger    logger.Logger
}

// Option applies a configuration option to Open.
type Option func(*openConfig)

// WithPingRetries sets how many times Open pings before giving up.
func WithPingRetries(attempts int, delay time.Duration) Option {
	return func(c *openConfig) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if delay >= 0 {
			c.delay = delay
		}
	}
}

// WithBatchSize sets the number of rows per INSERT statement.
func WithBatchSize(n int) Option {
	return func(c *openConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *openConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Open connects to dsn, waits for the server to answer and creates the
// schema when missing.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg := openConfig{attempts: defaultPingAttempts, delay: defaultPingDelay, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("pgsource")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres open: %w", source.ErrSourceOpen, err)
	}

	for i := 0; i < cfg.attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		cfg.logger.Warn(ctx, "postgres not ready",
			logger.Int("attempt", i+1),
			logger.Error(err),
		)
		if i == cfg.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("%w: postgres ping: %w", source.ErrSourceOpen, ctx.Err())
		case <-time.After(cfg.delay):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: postgres ping failed after %d attempts: %w", source.ErrSourceOpen, cfg.attempts, err)
	}

	s := &Store{db: db, batchSize: cfg.batchSize, logger: cfg.logger}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return s, nil
}

// Name implements source.Loader.
func (s *Store) Name() string { return "postgres" }

// Load returns every stored record in insertion order. Departure times come
// back at the UTC offset they were ingested with, so their calendar dates
// match the ones computed before they were stored.
func (s *Store) Load(ctx context.Context) ([]model.FlightRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flight_number, departure_airport, arrival_airport, airline,
		       departure_time, utc_offset_seconds, delay_minutes, status, weather_condition,
		       delay_reason, geomagnetic_kp_index, solar_flare_intensity
		FROM flight_records
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var rep source.Report
	out := make([]model.FlightRecord, 0, 1024)
	for rows.Next() {
		var (
			r   model.FlightRecord
			col nullColumns
		)
		if err := rows.Scan(
			&r.FlightNumber, &r.DepartureAirport, &r.ArrivalAirport, &r.Airline,
			&col.departure, &col.offset, &col.delay, &r.Status, &r.WeatherCondition,
			&r.DelayReason, &col.kp, &r.SolarFlareIntensity,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		fromNulls(&r, col)
		rep.Observe(&r)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}

	metrics.RecordRecordsLoaded(s.Name(), len(out))
	for reason, n := range rep.Reasons {
		metrics.RecordRecordRejected(reason, n)
	}
	s.logger.Info(ctx, "dataset loaded",
		logger.Int("rows", rep.Rows),
		logger.Int("unusable", rep.Unusable),
	)
	return out, nil
}

// Insert writes records in batches. Rows that already exist are skipped; the
// returned count is the number of new rows.
func (s *Store) Insert(ctx context.Context, records []model.FlightRecord) (int, error) {
	inserted := 0
	for i := 0; i < len(records); i += s.batchSize {
		end := i + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		query, args := buildInsert(records[i:end])
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert batch: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// Clear deletes every stored record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM flight_records"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func buildInsert(batch []model.FlightRecord) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*insertColumns)

	for idx := range batch {
		r := &batch[idx]
		base := idx * insertColumns
		ph := make([]string, insertColumns)
		for c := range ph {
			ph[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")

		col := toNulls(r)
		args = append(args,
			r.FlightNumber, r.DepartureAirport, r.ArrivalAirport, r.Airline,
			col.departure, col.offset, col.delay, r.Status, r.WeatherCondition,
			r.DelayReason, col.kp, r.SolarFlareIntensity,
		)
	}

	query := `
		INSERT INTO flight_records (
			flight_number, departure_airport, arrival_airport, airline,
			departure_time, utc_offset_seconds, delay_minutes, status, weather_condition,
			delay_reason, geomagnetic_kp_index, solar_flare_intensity
		)
		VALUES ` + strings.Join(valueStrings, ",") + `
		ON CONFLICT (flight_number, departure_airport, arrival_airport, departure_time) DO NOTHING
	`
	return query, args
}

// nullColumns are the nullable columns of a flight_records row.
// TIMESTAMPTZ keeps only the instant, so the offset is stored beside it.
type nullColumns struct {
	departure sql.NullTime
	offset    sql.NullInt32
	delay     sql.NullFloat64
	kp        sql.NullFloat64
}

func toNulls(r *model.FlightRecord) nullColumns {
	col := nullColumns{
		departure: sql.NullTime{Time: r.DepartureTime, Valid: r.HasDate()},
		delay:     sql.NullFloat64{Float64: r.DelayMinutes, Valid: r.DelayKnown},
		kp:        sql.NullFloat64{Float64: r.KpIndex, Valid: r.KpKnown},
	}
	if r.HasDate() {
		_, offset := r.DepartureTime.Zone()
		col.offset = sql.NullInt32{Int32: int32(offset), Valid: true}
	}
	return col
}

// fromNulls restores a row. Rows written before the offset column existed
// are read as UTC.
func fromNulls(r *model.FlightRecord, col nullColumns) {
	if col.departure.Valid {
		r.DepartureTime = col.departure.Time.UTC()
		if col.offset.Valid && col.offset.Int32 != 0 {
			r.DepartureTime = r.DepartureTime.In(time.FixedZone("", int(col.offset.Int32)))
		}
	}
	r.DelayMinutes, r.DelayKnown = col.delay.Float64, col.delay.Valid
	r.KpIndex, r.KpKnown = col.kp.Float64, col.kp.Valid
}
