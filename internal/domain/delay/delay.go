// Package delay computes per-date delay statistics for a route and picks the
// day and flight with the lowest observed delay.
package delay

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/okian/flightdelay/internal/domain/model"
)

// dayBucket accumulates the usable records of one calendar date. best is the
// index into the caller's slice of the least delayed record seen so far.
type dayBucket struct {
	date  civil.Date
	sum   float64
	count int
	best  int
}

// group filters records to the route and buckets usable ones by date.
// Buckets are returned sorted by date.
func group(records []model.FlightRecord, q model.RouteQuery) (buckets []*dayBucket, matched int) {
	byDate := make(map[civil.Date]*dayBucket)
	for i := range records {
		r := &records[i]
		if !q.Matches(r) {
			continue
		}
		matched++
		if !r.Usable() {
			continue
		}
		d := r.Date()
		b, ok := byDate[d]
		if !ok {
			b = &dayBucket{date: d, best: i}
			byDate[d] = b
			buckets = append(buckets, b)
		}
		b.sum += r.DelayMinutes
		b.count++
		// strict comparison keeps the first record on ties
		if r.DelayMinutes < records[b.best].DelayMinutes {
			b.best = i
		}
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].date.Before(buckets[j].date) })
	return buckets, matched
}

func (b *dayBucket) mean() float64 {
	return b.sum / float64(b.count)
}

// Analysis is everything the route queries derive from one grouping pass.
type Analysis struct {
	Recommendation model.Recommendation
	// Found is false when no usable record matches the route.
	Found   bool
	Daily   []model.DateAggregate
	Summary Summary
}

// Summary describes how many records a route query touched.
type Summary struct {
	Matched int
	Usable  int
	Days    int
}

// Analyze groups the route once and returns its recommendation, daily means
// and summary.
func Analyze(records []model.FlightRecord, q model.RouteQuery) Analysis {
	buckets, matched := group(records, q)
	a := Analysis{
		Daily:   daily(buckets),
		Summary: summarize(buckets, matched),
	}
	a.Recommendation, a.Found = recommend(records, q, buckets)
	return a
}

// DailyMeans returns one aggregate per distinct departure date of the route,
// sorted by date. Records without a parseable date or a delay are skipped.
func DailyMeans(records []model.FlightRecord, q model.RouteQuery) []model.DateAggregate {
	buckets, _ := group(records, q)
	return daily(buckets)
}

// Recommend selects the date with the lowest mean delay for origin to
// destination and, within it, the least delayed flight. Equal means resolve to
// the earliest date; equal delays resolve to the record that appears first in
// records. ok is false when no usable record matches the route.
func Recommend(records []model.FlightRecord, origin, destination string) (model.Recommendation, bool) {
	q := model.RouteQuery{Origin: origin, Destination: destination}
	buckets, _ := group(records, q)
	return recommend(records, q, buckets)
}

// Summarize counts matched and usable records for the route.
func Summarize(records []model.FlightRecord, q model.RouteQuery) Summary {
	buckets, matched := group(records, q)
	return summarize(buckets, matched)
}

func daily(buckets []*dayBucket) []model.DateAggregate {
	out := make([]model.DateAggregate, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, model.DateAggregate{Date: b.date, MeanDelay: b.mean(), Flights: b.count})
	}
	return out
}

func recommend(records []model.FlightRecord, q model.RouteQuery, buckets []*dayBucket) (model.Recommendation, bool) {
	if len(buckets) == 0 {
		return model.Recommendation{}, false
	}

	// buckets are date-ordered, so the first minimum is the earliest date
	best := buckets[0]
	for _, b := range buckets[1:] {
		if b.mean() < best.mean() {
			best = b
		}
	}

	return model.Recommendation{
		Route:      q,
		BestDate:   best.date,
		BestFlight: records[best.best],
		MeanDelay:  best.mean(),
	}, true
}

func summarize(buckets []*dayBucket, matched int) Summary {
	s := Summary{Matched: matched, Days: len(buckets)}
	for _, b := range buckets {
		s.Usable += b.count
	}
	return s
}
