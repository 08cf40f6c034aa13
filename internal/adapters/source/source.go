// Package source defines how record sets are loaded at startup.
package source

import (
	"context"
	"errors"

	"github.com/okian/flightdelay/internal/domain/model"
)

// ErrSourceOpen wraps failures to reach the underlying data.
var ErrSourceOpen = errors.New("source open failed")

// Loader reads the full record set.
type Loader interface {
	// Name identifies the source in logs and metrics.
	Name() string
	Load(ctx context.Context) ([]model.FlightRecord, error)
}

// Report summarizes a load.
type Report struct {
	Rows     int
	Unusable int
	Reasons  map[string]int
}

// Classify returns the reason a record cannot be aggregated, or "" when it
// is usable.
func Classify(r *model.FlightRecord) string {
	switch {
	case !r.HasDate():
		return "invalid_timestamp"
	case !r.DelayKnown:
		return "missing_delay"
	case !r.HasDelay():
		return "invalid_delay"
	default:
		return ""
	}
}

// Observe classifies r and counts it in the report.
func (rep *Report) Observe(r *model.FlightRecord) {
	rep.Rows++
	reason := Classify(r)
	if reason == "" {
		return
	}
	rep.Unusable++
	if rep.Reasons == nil {
		rep.Reasons = make(map[string]int)
	}
	rep.Reasons[reason]++
}
