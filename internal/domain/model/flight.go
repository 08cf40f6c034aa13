// Package model contains domain models passed between layers.
package model

import (
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// FlightRecord is one row of the delay dataset. Records are immutable once
// loaded; the store hands out snapshots and never mutates them in place.
type FlightRecord struct {
	FlightNumber     string
	DepartureAirport string
	ArrivalAirport   string
	Airline          string
	// DepartureTime is zero when the source timestamp could not be parsed.
	DepartureTime time.Time
	// DelayMinutes is meaningful only when DelayKnown is true.
	DelayMinutes float64
	DelayKnown   bool

	// Optional dataset columns.
	Status              string
	WeatherCondition    string
	DelayReason         string
	KpIndex             float64
	KpKnown             bool
	SolarFlareIntensity string
}

// Usable reports whether the record can take part in delay aggregation.
func (r *FlightRecord) Usable() bool {
	return r.HasDate() && r.HasDelay()
}

// HasDate reports whether the departure time was parsed.
func (r *FlightRecord) HasDate() bool {
	return !r.DepartureTime.IsZero()
}

// HasDelay reports whether the delay is present and non-negative.
func (r *FlightRecord) HasDelay() bool {
	return r.DelayKnown && !math.IsNaN(r.DelayMinutes) && !math.IsInf(r.DelayMinutes, 0) && r.DelayMinutes >= 0
}

// Date is the calendar day of departure in the timestamp's own location.
func (r *FlightRecord) Date() civil.Date {
	return civil.DateOf(r.DepartureTime)
}

// Route returns the record's (origin, destination) pair.
func (r *FlightRecord) Route() RouteQuery {
	return RouteQuery{Origin: r.DepartureAirport, Destination: r.ArrivalAirport}
}

// Key identifies a flight for idempotent ingestion.
func (r *FlightRecord) Key() string {
	ts := ""
	if r.HasDate() {
		ts = r.DepartureTime.UTC().Format(time.RFC3339)
	}
	return strings.Join([]string{r.FlightNumber, r.DepartureAirport, r.ArrivalAirport, ts}, "|")
}

// RouteQuery selects records by exact, case-sensitive airport codes.
type RouteQuery struct {
	Origin      string
	Destination string
}

// Matches reports whether r belongs to the queried route.
func (q RouteQuery) Matches(r *FlightRecord) bool {
	return r.DepartureAirport == q.Origin && r.ArrivalAirport == q.Destination
}

// String renders the route as ORIGIN-DESTINATION.
func (q RouteQuery) String() string {
	return q.Origin + "-" + q.Destination
}

// DateAggregate is the mean delay of a route on one calendar day.
type DateAggregate struct {
	Date      civil.Date `json:"date"`
	MeanDelay float64    `json:"mean_delay"`
	Flights   int        `json:"flights"`
}

// Recommendation pairs the lowest-delay day of a route with the least delayed
// flight observed on that day.
type Recommendation struct {
	Route      RouteQuery
	BestDate   civil.Date
	BestFlight FlightRecord
	MeanDelay  float64
}

// Batch is a group of validated records ingested together. Workers apply a
// batch to the store as one unit.
type Batch struct {
	ID         string
	Records    []FlightRecord
	ReceivedAt time.Time
}
