package service

import (
	"time"

	"github.com/okian/flightdelay/internal/adapters/mq/worker"
	"github.com/okian/flightdelay/internal/adapters/source"
	"github.com/okian/flightdelay/internal/domain/airports"
	"github.com/okian/flightdelay/internal/domain/normalize"
	"github.com/okian/flightdelay/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the number of batches the ingestion queue holds.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many record keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxBatchSize caps the records accepted by one Ingest call.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithSnapshotInterval sets how often ingested records become visible.
// Zero makes them visible as soon as a worker applies the batch.
func WithSnapshotInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.snapshotInterval = d
		}
	}
}

// WithLoader sets the source of the initial record set.
func WithLoader(l source.Loader) Option {
	return func(s *Service) {
		s.loader = l
	}
}

// WithSink makes workers persist ingested batches before they are applied.
func WithSink(sink worker.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithNormalizer replaces the default ingestion normalizer.
func WithNormalizer(n normalize.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithCatalog sets the airport catalog used by the route map.
func WithCatalog(c *airports.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithUnusualWeather sets the conditions treated as unusual weather.
func WithUnusualWeather(conditions []string) Option {
	return func(s *Service) {
		if len(conditions) > 0 {
			s.unusualWeather = append([]string(nil), conditions...)
		}
	}
}

// WithLateThreshold sets the delay above which a flight is drawn as late.
func WithLateThreshold(minutes float64) Option {
	return func(s *Service) {
		if minutes >= 0 {
			s.lateThreshold = minutes
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
