// Package types contains common types used across the application
package types

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/okian/flightdelay/internal/domain/model"
)

// Flight is the JSON shape of a flight record. Values that were missing or
// malformed in the source are null.
type Flight struct {
	FlightNumber        string     `json:"flight_number"`
	DepartureAirport    string     `json:"departure_airport"`
	ArrivalAirport      string     `json:"arrival_airport"`
	Airline             string     `json:"airline"`
	DepartureTime       *time.Time `json:"departure_time"`
	DelayMinutes        *float64   `json:"delay_minutes"`
	Status              string     `json:"status,omitempty"`
	WeatherCondition    string     `json:"weather_condition,omitempty"`
	DelayReason         string     `json:"delay_reason,omitempty"`
	KpIndex             *float64   `json:"geomagnetic_kp_index,omitempty"`
	SolarFlareIntensity string     `json:"solar_flare_intensity,omitempty"`
}

// FlightFrom converts a record to its JSON shape.
func FlightFrom(r *model.FlightRecord) Flight {
	f := Flight{
		FlightNumber:        r.FlightNumber,
		DepartureAirport:    r.DepartureAirport,
		ArrivalAirport:      r.ArrivalAirport,
		Airline:             r.Airline,
		Status:              r.Status,
		WeatherCondition:    r.WeatherCondition,
		DelayReason:         r.DelayReason,
		SolarFlareIntensity: r.SolarFlareIntensity,
	}
	if r.HasDate() {
		ts := r.DepartureTime
		f.DepartureTime = &ts
	}
	if r.HasDelay() {
		d := r.DelayMinutes
		f.DelayMinutes = &d
	}
	if r.KpKnown {
		kp := r.KpIndex
		f.KpIndex = &kp
	}
	return f
}

// FlightPage is a capped listing of records.
type FlightPage struct {
	Total   int      `json:"total"`
	Flights []Flight `json:"flights"`
}

// Recommendation is the JSON shape of a route recommendation.
type Recommendation struct {
	Origin      string                `json:"origin"`
	Destination string                `json:"destination"`
	BestDate    civil.Date            `json:"best_date"`
	BestFlight  Flight                `json:"best_flight"`
	MeanDelay   float64               `json:"mean_delay"`
	Daily       []model.DateAggregate `json:"daily"`
	// Matched counts route records; Usable those with a date and a delay.
	Matched int `json:"matched_records"`
	Usable  int `json:"usable_records"`
}

// Rejection explains why one record of an ingestion batch was refused.
type Rejection struct {
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// IngestResult reports what happened to an ingestion batch.
type IngestResult struct {
	BatchID    string      `json:"batch_id,omitempty"`
	Accepted   int         `json:"accepted"`
	Duplicates int         `json:"duplicates"`
	Rejected   []Rejection `json:"rejected"`
}

// AirportPoint is an airport placed on the route map.
type AirportPoint struct {
	Code string  `json:"code"`
	City string  `json:"city,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Marker colours.
const (
	MarkerLate   = "red"
	MarkerOnTime = "green"
)

// Marker is one flight on the route map.
type Marker struct {
	FlightNumber  string    `json:"flight_number"`
	Airline       string    `json:"airline"`
	DepartureTime time.Time `json:"departure_time"`
	DelayMinutes  float64   `json:"delay_minutes"`
	Color         string    `json:"color"`
}

// RouteMap is the overlay drawn for a route. Origin and Destination are nil
// when the airport has no known coordinates.
type RouteMap struct {
	Route       string        `json:"route"`
	Origin      *AirportPoint `json:"origin"`
	Destination *AirportPoint `json:"destination"`
	DistanceKM  *float64      `json:"distance_km"`
	Threshold   float64       `json:"late_threshold_minutes"`
	Markers     []Marker      `json:"markers"`
}
