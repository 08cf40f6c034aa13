package repository

import "time"

// Option applies a configuration option to the SnapshotStore.
type Option func(*SnapshotStore)

// WithSnapshotInterval sets how often staged records are published. Zero
// publishes on every Append.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(s *SnapshotStore) {
		if interval >= 0 {
			s.snapshotInterval = interval
		}
	}
}

// WithMaxRecords bounds the number of records the store accepts. Zero means
// unbounded.
func WithMaxRecords(n int) Option {
	return func(s *SnapshotStore) {
		if n >= 0 {
			s.maxRecords = n
		}
	}
}
