// Package csvsource reads and writes flight records as CSV.
package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/okian/flightdelay/internal/adapters/source"
	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/internal/domain/normalize"
	"github.com/okian/flightdelay/pkg/logger"
	"github.com/okian/flightdelay/pkg/metrics"
)

// Columns is the dataset header, in write order.
var Columns = []string{
	"flight_number",
	"departure_airport",
	"arrival_airport",
	"airline",
	"departure_time",
	"delay_minutes",
	"status",
	"weather_condition",
	"delay_reason",
	"geomagnetic_kp_index",
	"solar_flare_intensity",
}

// required columns must be present in the header.
var required = []string{"flight_number", "departure_airport", "arrival_airport", "departure_time", "delay_minutes"}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Source loads records from a CSV file.
type Source struct {
	path       string
	normalizer *normalize.Validating
	logger     logger.Logger
}

// Option applies a configuration option to the Source.
type Option func(*Source)

// WithNormalizer sets the normalizer used to parse rows.
func WithNormalizer(n *normalize.Validating) Option {
	return func(s *Source) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a CSV source for path.
func New(path string, opts ...Option) *Source {
	s := &Source{path: path}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("csvsource")
	}
	return s
}

// Name implements source.Loader.
func (s *Source) Name() string { return "csv" }

// Load reads the whole file. Malformed rows are kept as unusable records and
// counted; only I/O and header problems are errors.
func (s *Source) Load(ctx context.Context) ([]model.FlightRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", source.ErrSourceOpen, s.path, err)
	}
	defer f.Close()

	records, rep, err := Read(ctx, f, s.normalizer)
	if err != nil {
		return nil, fmt.Errorf("csv %s: %w", s.path, err)
	}

	metrics.RecordRecordsLoaded(s.Name(), len(records))
	for reason, n := range rep.Reasons {
		metrics.RecordRecordRejected(reason, n)
	}
	s.logger.Info(ctx, "dataset loaded",
		logger.String("path", s.path),
		logger.Int("rows", rep.Rows),
		logger.Int("unusable", rep.Unusable),
	)
	return records, nil
}

// Read parses CSV from r. The header decides column order; unknown columns
// are ignored and short rows are padded with empty values.
func Read(ctx context.Context, r io.Reader, n *normalize.Validating) ([]model.FlightRecord, source.Report, error) {
	var rep source.Report

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []model.FlightRecord{}, rep, nil
		}
		return nil, rep, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, rep, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	field := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	out := make([]model.FlightRecord, 0, 1024)
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, rep, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rep.Rows++
				rep.Unusable++
				if rep.Reasons == nil {
					rep.Reasons = make(map[string]int)
				}
				rep.Reasons["malformed_row"]++
				continue
			}
			return nil, rep, fmt.Errorf("line %d: %w", line, err)
		}

		rec := n.Lenient(normalize.Input{
			FlightNumber:        field(row, "flight_number"),
			DepartureAirport:    field(row, "departure_airport"),
			ArrivalAirport:      field(row, "arrival_airport"),
			Airline:             field(row, "airline"),
			DepartureTime:       field(row, "departure_time"),
			DelayMinutes:        parseFloat(field(row, "delay_minutes")),
			Status:              field(row, "status"),
			WeatherCondition:    field(row, "weather_condition"),
			DelayReason:         field(row, "delay_reason"),
			KpIndex:             parseFloat(field(row, "geomagnetic_kp_index")),
			SolarFlareIntensity: field(row, "solar_flare_intensity"),
		})
		rep.Observe(&rec)
		out = append(out, rec)
	}
	return out, rep, nil
}

// Write emits records with the Columns header. Unknown values are written as
// empty cells.
func Write(w io.Writer, records []model.FlightRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(Columns))
	for i := range records {
		r := &records[i]
		row[0] = r.FlightNumber
		row[1] = r.DepartureAirport
		row[2] = r.ArrivalAirport
		row[3] = r.Airline
		row[4] = ""
		if r.HasDate() {
			row[4] = r.DepartureTime.Format(time.RFC3339)
		}
		row[5] = ""
		if r.DelayKnown {
			row[5] = strconv.FormatFloat(r.DelayMinutes, 'f', -1, 64)
		}
		row[6] = r.Status
		row[7] = r.WeatherCondition
		row[8] = r.DelayReason
		row[9] = ""
		if r.KpKnown {
			row[9] = strconv.FormatFloat(r.KpIndex, 'f', -1, 64)
		}
		row[10] = r.SolarFlareIntensity
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
