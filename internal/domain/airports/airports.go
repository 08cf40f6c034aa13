// Package airports resolves IATA codes to coordinates for the route map.
package airports

import (
	"errors"
	"sort"

	"github.com/skypies/geo"
)

// ErrUnknownAirport is returned for codes missing from the catalog.
var ErrUnknownAirport = errors.New("unknown airport")

// Airport is a named location keyed by its IATA code.
type Airport struct {
	geo.NamedLatlong
	City string
}

// Catalog is a read-only set of airports. The zero value is empty.
type Catalog struct {
	byCode map[string]Airport
}

// builtin covers the hubs that appear in the delay datasets.
var builtin = []Airport{
	{geo.NamedLatlong{Name: "ATL", Latlong: geo.Latlong{Lat: 33.6407, Long: -84.4277}}, "Atlanta"},
	{geo.NamedLatlong{Name: "BOS", Latlong: geo.Latlong{Lat: 42.3656, Long: -71.0096}}, "Boston"},
	{geo.NamedLatlong{Name: "CDG", Latlong: geo.Latlong{Lat: 49.0097, Long: 2.5479}}, "Paris"},
	{geo.NamedLatlong{Name: "DEN", Latlong: geo.Latlong{Lat: 39.8561, Long: -104.6737}}, "Denver"},
	{geo.NamedLatlong{Name: "DFW", Latlong: geo.Latlong{Lat: 32.8998, Long: -97.0403}}, "Dallas"},
	{geo.NamedLatlong{Name: "DXB", Latlong: geo.Latlong{Lat: 25.2532, Long: 55.3657}}, "Dubai"},
	{geo.NamedLatlong{Name: "FRA", Latlong: geo.Latlong{Lat: 50.0379, Long: 8.5622}}, "Frankfurt"},
	{geo.NamedLatlong{Name: "HND", Latlong: geo.Latlong{Lat: 35.5494, Long: 139.7798}}, "Tokyo"},
	{geo.NamedLatlong{Name: "JFK", Latlong: geo.Latlong{Lat: 40.6413, Long: -73.7781}}, "New York"},
	{geo.NamedLatlong{Name: "LAX", Latlong: geo.Latlong{Lat: 33.9416, Long: -118.4085}}, "Los Angeles"},
	{geo.NamedLatlong{Name: "LHR", Latlong: geo.Latlong{Lat: 51.4700, Long: -0.4543}}, "London"},
	{geo.NamedLatlong{Name: "MAD", Latlong: geo.Latlong{Lat: 40.4983, Long: -3.5676}}, "Madrid"},
	{geo.NamedLatlong{Name: "MIA", Latlong: geo.Latlong{Lat: 25.7959, Long: -80.2870}}, "Miami"},
	{geo.NamedLatlong{Name: "ORD", Latlong: geo.Latlong{Lat: 41.9742, Long: -87.9073}}, "Chicago"},
	{geo.NamedLatlong{Name: "SEA", Latlong: geo.Latlong{Lat: 47.4502, Long: -122.3088}}, "Seattle"},
	{geo.NamedLatlong{Name: "SFO", Latlong: geo.Latlong{Lat: 37.6213, Long: -122.3790}}, "San Francisco"},
	{geo.NamedLatlong{Name: "SIN", Latlong: geo.Latlong{Lat: 1.3644, Long: 103.9915}}, "Singapore"},
}

// New returns a catalog of the built-in airports plus extra. Entries in extra
// replace built-in ones with the same code.
func New(extra ...Airport) *Catalog {
	c := &Catalog{byCode: make(map[string]Airport, len(builtin)+len(extra))}
	for _, a := range builtin {
		c.byCode[a.Name] = a
	}
	for _, a := range extra {
		c.byCode[a.Name] = a
	}
	return c
}

// Lookup returns the airport for code.
func (c *Catalog) Lookup(code string) (Airport, bool) {
	if c == nil {
		return Airport{}, false
	}
	a, ok := c.byCode[code]
	return a, ok
}

// Codes returns every known code in ascending order.
func (c *Catalog) Codes() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.byCode))
	for code := range c.byCode {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// DistanceKM is the great-circle distance between two airports.
func (c *Catalog) DistanceKM(from, to string) (float64, error) {
	a, ok := c.Lookup(from)
	if !ok {
		return 0, &LookupError{Code: from}
	}
	b, ok := c.Lookup(to)
	if !ok {
		return 0, &LookupError{Code: to}
	}
	return a.Latlong.DistKM(b.Latlong), nil
}

// LookupError names the code that could not be resolved.
type LookupError struct {
	Code string
}

func (e *LookupError) Error() string {
	return ErrUnknownAirport.Error() + ": " + e.Code
}

// Unwrap lets errors.Is match ErrUnknownAirport.
func (e *LookupError) Unwrap() error {
	return ErrUnknownAirport
}
