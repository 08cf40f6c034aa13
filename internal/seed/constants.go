package seed

import "time"

// Defaults applied by Config.withDefaults.
const (
	DefaultRecords      = 5000
	DefaultBatchSize    = 250
	DefaultTimeout      = 30 * time.Second
	DefaultRetries      = 5
	DefaultDays         = 30
	DefaultSettle       = 2 * time.Second
	DefaultVerifyRoutes = 10

	retryBackoff         = 200 * time.Millisecond
	percentageMultiplier = 100
)

// DefaultAirports are the airports routes are drawn from.
var DefaultAirports = []string{"ATL", "CDG", "DFW", "DXB", "JFK", "LAX", "LHR", "ORD", "SFO", "SIN"}

// DefaultAirlines are the carriers flights are drawn from.
var DefaultAirlines = []string{"Air France", "American Airlines", "British Airways", "Delta", "Emirates", "Singapore Airlines", "United"}
