package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/pkg/metrics"
)

const defaultSnapshotInterval = 500 * time.Millisecond

// SnapshotStore is a copy-on-write record store. Writers stage records under
// a mutex; a background loop publishes a new immutable Snapshot when staged
// records exist. Readers load the current snapshot without locking.
type SnapshotStore struct {
	mu      sync.Mutex
	pending []model.FlightRecord
	closed  bool

	snapshotInterval time.Duration
	maxRecords       int

	snapshot atomic.Pointer[Snapshot]
	version  atomic.Uint64

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewSnapshotStore creates an empty store and starts the publish loop. The
// loop stops on Close or when ctx is done.
func NewSnapshotStore(ctx context.Context, opts ...Option) *SnapshotStore {
	s := &SnapshotStore{
		snapshotInterval: defaultSnapshotInterval,
		stopChan:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.snapshot.Store(&Snapshot{Records: []model.FlightRecord{}, BuiltAt: time.Now()})
	if s.snapshotInterval > 0 {
		s.startPeriodicSnapshots(ctx)
	}
	return s
}

func (s *SnapshotStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Flush()
			}
		}
	}()
}

// Append stages records. With a zero snapshot interval they are published
// before Append returns.
func (s *SnapshotStore) Append(_ context.Context, records []model.FlightRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if s.maxRecords > 0 && s.snapshot.Load().Len()+len(s.pending)+len(records) > s.maxRecords {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "capacity_exceeded")
		return 0, ErrCapacity
	}
	s.pending = append(s.pending, records...)
	s.mu.Unlock()

	if s.snapshotInterval == 0 {
		s.Flush()
	}
	return len(records), nil
}

// Replace publishes records as the whole data set, dropping staged records.
func (s *SnapshotStore) Replace(_ context.Context, records []model.FlightRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.pending = nil
	owned := make([]model.FlightRecord, len(records))
	copy(owned, records)
	s.publish(owned)
	return nil
}

// Flush publishes staged records now. It is a no-op when nothing is staged.
func (s *SnapshotStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return
	}
	cur := s.snapshot.Load().Records
	// full slice expression forces a copy so older snapshots stay intact
	next := append(cur[:len(cur):len(cur)], s.pending...)
	s.pending = nil
	s.publish(next)
}

// publish must be called with s.mu held.
func (s *SnapshotStore) publish(records []model.FlightRecord) {
	start := time.Now()

	routes := make(map[model.RouteQuery]struct{})
	for i := range records {
		routes[records[i].Route()] = struct{}{}
	}

	s.snapshot.Store(&Snapshot{
		Records: records,
		Routes:  len(routes),
		Version: s.version.Add(1),
		BuiltAt: time.Now(),
	})

	metrics.RecordSnapshotRebuild(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateRecordsTotal(len(records))
	metrics.UpdateRoutesTotal(len(routes))
}

// Snapshot returns the latest published snapshot.
func (s *SnapshotStore) Snapshot(context.Context) *Snapshot {
	return s.snapshot.Load()
}

// Count returns the number of published records.
func (s *SnapshotStore) Count(context.Context) int {
	return s.snapshot.Load().Len()
}

// Pending returns the number of staged, unpublished records.
func (s *SnapshotStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close publishes any staged records and stops the publish loop.
func (s *SnapshotStore) Close() error {
	select {
	case <-s.stopChan:
		return nil
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	s.Flush()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
