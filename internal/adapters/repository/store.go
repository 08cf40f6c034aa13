// Package repository holds the in-memory flight record store.
package repository

import (
	"context"
	"time"

	"github.com/okian/flightdelay/internal/domain/model"
)

// Snapshot is an immutable view of the store. Readers must not modify
// Records.
type Snapshot struct {
	Records []model.FlightRecord
	Routes  int
	Version uint64
	BuiltAt time.Time
}

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Store provides read/write access to the record set.
type Store interface {
	// Append stages records for the next snapshot. The whole slice becomes
	// visible at once.
	Append(ctx context.Context, records []model.FlightRecord) (int, error)

	// Replace discards all records and publishes records immediately.
	Replace(ctx context.Context, records []model.FlightRecord) error

	// Snapshot returns the latest published snapshot. It never returns nil.
	Snapshot(ctx context.Context) *Snapshot

	// Count returns the number of published records.
	Count(ctx context.Context) int
}
