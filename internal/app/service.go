// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/flightdelay/internal/adapters/mq/queue"
	"github.com/okian/flightdelay/internal/adapters/mq/worker"
	"github.com/okian/flightdelay/internal/adapters/repository"
	"github.com/okian/flightdelay/internal/adapters/source"
	"github.com/okian/flightdelay/internal/domain/airports"
	"github.com/okian/flightdelay/internal/domain/dedupe"
	"github.com/okian/flightdelay/internal/domain/delay"
	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/internal/domain/normalize"
	"github.com/okian/flightdelay/internal/domain/stats"
	"github.com/okian/flightdelay/internal/domain/types"
	"github.com/okian/flightdelay/pkg/logger"
	"github.com/okian/flightdelay/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// Service owns the record store and the ingestion pipeline, and answers
// every analytical query against the latest snapshot.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *repository.SnapshotStore
	deduper    dedupe.Deduper
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	normalizer normalize.Normalizer
	loader     source.Loader
	sink       worker.Sink
	catalog    *airports.Catalog

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	maxBatchSize     int
	snapshotInterval time.Duration
	unusualWeather   []string
	lateThreshold    float64

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        1024,
		dedupeSize:       500_000,
		maxBatchSize:     1000,
		snapshotInterval: 500 * time.Millisecond,
		unusualWeather:   append([]string(nil), stats.DefaultUnusualWeather...),
		lateThreshold:    15,
		catalog:          airports.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start loads the initial record set and starts the ingestion workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New()
	}

	s.logger.Info(ctx, "starting flight delay service...")

	var records []model.FlightRecord
	if s.loader != nil {
		start := time.Now()
		loaded, err := s.loader.Load(ctx)
		if err != nil {
			return fmt.Errorf("load records from %s: %w", s.loader.Name(), err)
		}
		records = loaded
		s.logger.Info(ctx, "records loaded",
			logger.String("source", s.loader.Name()),
			logger.Int("records", len(records)),
			logger.Duration("took", time.Since(start)),
		)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.store = repository.NewSnapshotStore(runCtx, repository.WithSnapshotInterval(s.snapshotInterval))
	if err := s.store.Replace(ctx, records); err != nil {
		cancel()
		return fmt.Errorf("publish initial records: %w", err)
	}

	// Records stay in memory for the life of the service, so their keys
	// must too: the deduper refuses new keys rather than evicting old ones.
	dedupeSize := s.dedupeSize
	if dedupeSize > 0 && len(records) > dedupeSize {
		s.logger.Warn(ctx, "loaded records exceed dedupe_size; raising the bound",
			logger.Int("dedupeSize", dedupeSize),
			logger.Int("records", len(records)),
		)
		dedupeSize = len(records)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(dedupeSize), dedupe.WithoutEviction())
	for i := range records {
		if records[i].HasDate() {
			_, _ = s.deduper.SeenAndRecord(ctx, records[i].Key())
		}
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	var workerOpts []worker.Option
	if s.sink != nil {
		workerOpts = append(workerOpts, worker.WithSink(s.sink))
	}
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store, workerOpts...)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "flight delay service started",
		logger.Int("records", len(records)),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the ingestion queue and publishes every applied batch.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping flight delay service...")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing record store", logger.Error(err))
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "flight delay service stopped")
}

// snapshot returns the latest published records.
func (s *Service) snapshot(ctx context.Context) ([]model.FlightRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.Snapshot(ctx).Records, nil
}

// Ingest validates inputs, drops records already seen and queues the rest as
// one batch. Invalid records are reported individually and never abort the
// batch. ErrQueueFull is returned together with the result when the batch
// could not be queued; none of its records are then remembered as seen.
func (s *Service) Ingest(ctx context.Context, inputs []normalize.Input) (types.IngestResult, error) {
	result := types.IngestResult{Rejected: []types.Rejection{}}

	switch {
	case len(inputs) == 0:
		return result, ErrEmptyBatch
	case len(inputs) > s.maxBatchSize:
		return result, fmt.Errorf("%w: %d records, at most %d allowed", ErrBatchTooLarge, len(inputs), s.maxBatchSize)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return result, ErrNotStarted
	}

	accepted := make([]model.FlightRecord, 0, len(inputs))
	for i, in := range inputs {
		rec, err := s.normalizer.Normalize(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				s.forget(ctx, accepted)
				return result, ctx.Err()
			}
			reason := normalize.Reason(err)
			result.Rejected = append(result.Rejected, types.Rejection{Index: i, Reason: reason, Message: err.Error()})
			metrics.RecordRecordRejected(reason, 1)
			continue
		}
		dup, err := s.deduper.SeenAndRecord(ctx, rec.Key())
		if errors.Is(err, dedupe.ErrFull) {
			result.Rejected = append(result.Rejected, types.Rejection{Index: i, Reason: reasonCapacity, Message: err.Error()})
			metrics.RecordRecordRejected(reasonCapacity, 1)
			continue
		}
		if dup {
			result.Duplicates++
			metrics.RecordRecordDuplicate()
			continue
		}
		accepted = append(accepted, rec)
	}

	if len(accepted) == 0 {
		return result, nil
	}

	batch := model.Batch{ID: uuid.NewString(), Records: accepted, ReceivedAt: time.Now()}
	if err := s.queue.Enqueue(ctx, batch); err != nil {
		s.forget(ctx, accepted)
		switch {
		case errors.Is(err, queue.ErrFull):
			return result, ErrQueueFull
		case errors.Is(err, queue.ErrClosed):
			return result, ErrNotStarted
		default:
			return result, fmt.Errorf("enqueue batch: %w", err)
		}
	}

	result.BatchID = batch.ID
	result.Accepted = len(accepted)
	s.logger.Debug(ctx, "batch queued",
		logger.String("batch_id", batch.ID),
		logger.Int("accepted", result.Accepted),
		logger.Int("duplicates", result.Duplicates),
		logger.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// reasonCapacity rejects records once dedupe_size keys are remembered.
const reasonCapacity = "capacity_exceeded"

func (s *Service) forget(ctx context.Context, records []model.FlightRecord) {
	for i := range records {
		s.deduper.Unrecord(ctx, records[i].Key())
	}
}

// Recommend returns the lowest-delay day and flight of a route together with
// the route's daily means.
func (s *Service) Recommend(ctx context.Context, origin, destination string) (types.Recommendation, error) {
	q, err := routeQuery(origin, destination)
	if err != nil {
		return types.Recommendation{}, err
	}
	records, err := s.snapshot(ctx)
	if err != nil {
		return types.Recommendation{}, err
	}

	start := time.Now()
	a := delay.Analyze(records, q)
	metrics.RecordAggregationLatency("recommendation", sinceMs(start))
	if !a.Found {
		metrics.RecordRecommendation("not_found")
		s.logger.Debug(ctx, "no recommendation",
			logger.String("route", q.String()),
			logger.Int("matched", a.Summary.Matched),
		)
		return types.Recommendation{}, fmt.Errorf("%w: %s", ErrRouteNotFound, q)
	}
	metrics.RecordRecommendation("found")

	rec := a.Recommendation
	return types.Recommendation{
		Origin:      q.Origin,
		Destination: q.Destination,
		BestDate:    rec.BestDate,
		BestFlight:  types.FlightFrom(&rec.BestFlight),
		MeanDelay:   rec.MeanDelay,
		Daily:       a.Daily,
		Matched:     a.Summary.Matched,
		Usable:      a.Summary.Usable,
	}, nil
}

// Report gathers what the recommendation PDF shows.
func (s *Service) Report(ctx context.Context, origin, destination string) (model.Recommendation, []model.DateAggregate, *float64, error) {
	q, err := routeQuery(origin, destination)
	if err != nil {
		return model.Recommendation{}, nil, nil, err
	}
	records, err := s.snapshot(ctx)
	if err != nil {
		return model.Recommendation{}, nil, nil, err
	}
	a := delay.Analyze(records, q)
	if !a.Found {
		return model.Recommendation{}, nil, nil, fmt.Errorf("%w: %s", ErrRouteNotFound, q)
	}
	return a.Recommendation, a.Daily, s.distance(q), nil
}

// DailyMeans returns the mean delay per calendar day of a route.
func (s *Service) DailyMeans(ctx context.Context, origin, destination string) ([]model.DateAggregate, error) {
	q, err := routeQuery(origin, destination)
	if err != nil {
		return nil, err
	}
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	days := delay.DailyMeans(records, q)
	metrics.RecordAggregationLatency("daily_means", sinceMs(start))
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, q)
	}
	return days, nil
}

// Flights lists records, optionally only those departing from airport, up
// to limit. Total counts every matching record.
func (s *Service) Flights(ctx context.Context, airport string, limit int) (types.FlightPage, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return types.FlightPage{}, err
	}
	matched := stats.FilterAirport(records, airport)

	n := len(matched)
	if limit >= 0 && limit < n {
		n = limit
	}
	page := types.FlightPage{Total: len(matched), Flights: make([]types.Flight, 0, n)}
	for i := 0; i < n; i++ {
		page.Flights = append(page.Flights, types.FlightFrom(&matched[i]))
	}
	return page, nil
}

// Airports returns the sorted distinct departure airports.
func (s *Service) Airports(ctx context.Context) ([]string, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Airports(records), nil
}

// AirlineDelays returns the mean delay per airline at airport. unusualOnly
// restricts the records to unusual weather.
func (s *Service) AirlineDelays(ctx context.Context, airport string, unusualOnly bool) ([]stats.AirlineDelay, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.RecordAggregationLatency("airline_delays", sinceMs(start)) }()
	return stats.AirlineMeans(records, airport, s.unusualSet(unusualOnly)), nil
}

// DelayReasons counts delays per weather condition and reason at airport
// under unusual weather.
func (s *Service) DelayReasons(ctx context.Context, airport string) ([]stats.ReasonCount, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return stats.DelayReasons(records, airport, s.unusualSet(true)), nil
}

// WeatherImpact returns the delay distribution per weather condition at
// airport.
func (s *Service) WeatherImpact(ctx context.Context, airport string, unusualOnly bool) ([]stats.Distribution, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.RecordAggregationLatency("weather_impact", sinceMs(start)) }()
	return stats.WeatherImpact(records, airport, s.unusualSet(unusualOnly)), nil
}

// WeatherOutlook returns the historical mean delay at airport for each
// unusual weather condition.
func (s *Service) WeatherOutlook(ctx context.Context, airport string) ([]stats.Outlook, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return stats.WeatherOutlook(records, airport, s.unusualWeather), nil
}

// HourlyDelays returns the mean delay per departure hour.
func (s *Service) HourlyDelays(ctx context.Context) ([]stats.HourlyDelay, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Hourly(records), nil
}

// SpaceWeather summarizes the geomagnetic observations of the data set.
func (s *Service) SpaceWeather(ctx context.Context) (stats.SpaceWeather, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return stats.SpaceWeather{}, err
	}
	sw, ok := stats.SpaceWeatherSummary(records)
	if !ok {
		return stats.SpaceWeather{}, ErrNoSpaceWeather
	}
	return sw, nil
}

// RouteMap places a route's airports and flights for the map overlay.
// Flights whose delay exceeds the late threshold are coloured red.
func (s *Service) RouteMap(ctx context.Context, origin, destination string) (types.RouteMap, error) {
	q, err := routeQuery(origin, destination)
	if err != nil {
		return types.RouteMap{}, err
	}
	records, err := s.snapshot(ctx)
	if err != nil {
		return types.RouteMap{}, err
	}

	m := types.RouteMap{
		Route:       q.String(),
		Origin:      s.point(q.Origin),
		Destination: s.point(q.Destination),
		DistanceKM:  s.distance(q),
		Threshold:   s.lateThreshold,
		Markers:     []types.Marker{},
	}
	for i := range records {
		r := &records[i]
		if !q.Matches(r) || !r.Usable() {
			continue
		}
		color := types.MarkerOnTime
		if r.DelayMinutes > s.lateThreshold {
			color = types.MarkerLate
		}
		m.Markers = append(m.Markers, types.Marker{
			FlightNumber:  r.FlightNumber,
			Airline:       r.Airline,
			DepartureTime: r.DepartureTime,
			DelayMinutes:  r.DelayMinutes,
			Color:         color,
		})
	}
	if len(m.Markers) == 0 {
		return types.RouteMap{}, fmt.Errorf("%w: %s", ErrRouteNotFound, q)
	}
	return m, nil
}

func (s *Service) point(code string) *types.AirportPoint {
	a, ok := s.catalog.Lookup(code)
	if !ok {
		return nil
	}
	return &types.AirportPoint{Code: a.Name, City: a.City, Lat: a.Lat, Lon: a.Long}
}

func (s *Service) distance(q model.RouteQuery) *float64 {
	km, err := s.catalog.DistanceKM(q.Origin, q.Destination)
	if err != nil {
		return nil
	}
	return &km
}

func (s *Service) unusualSet(enabled bool) stats.Set {
	if !enabled {
		return nil
	}
	return stats.NewSet(s.unusualWeather)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	out := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"maxBatchSize": s.maxBatchSize,
	}
	if s.loader != nil {
		out["source"] = s.loader.Name()
	}

	if s.started {
		snap := s.store.Snapshot(ctx)
		queueLen := s.queue.Len(ctx)

		out["records"] = snap.Len()
		out["routes"] = snap.Routes
		out["snapshotVersion"] = snap.Version
		out["snapshotBuiltAt"] = snap.BuiltAt
		out["pendingRecords"] = s.store.Pending()
		out["queueLength"] = queueLen
		out["seenKeys"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return out
}

func routeQuery(origin, destination string) (model.RouteQuery, error) {
	q := model.RouteQuery{Origin: strings.TrimSpace(origin), Destination: strings.TrimSpace(destination)}
	if q.Origin == "" || q.Destination == "" {
		return model.RouteQuery{}, ErrInvalidRoute
	}
	return q, nil
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
