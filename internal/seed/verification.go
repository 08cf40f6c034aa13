package seed

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/okian/flightdelay/internal/domain/delay"
	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/internal/domain/normalize"
	"github.com/okian/flightdelay/pkg/logger"
)

const meanTolerance = 1e-6

// Expectation is the recommendation the service should return for a route
// holding exactly the generated records.
type Expectation struct {
	Route  model.RouteQuery
	Result model.Recommendation
	Usable int
}

// Normalized converts inputs the way the service does and drops the ones it
// would reject.
func Normalized(ctx context.Context, inputs []normalize.Input) []model.FlightRecord {
	n := normalize.New()
	records := make([]model.FlightRecord, 0, len(inputs))
	for _, in := range inputs {
		r, err := n.Normalize(ctx, in)
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records
}

// Expectations computes the recommendation of the busiest routes, at most
// limit of them, ordered by usable records then route name.
func Expectations(records []model.FlightRecord, limit int) []Expectation {
	usable := make(map[model.RouteQuery]int)
	for i := range records {
		if records[i].Usable() {
			usable[records[i].Route()]++
		}
	}

	routes := make([]model.RouteQuery, 0, len(usable))
	for q := range usable {
		routes = append(routes, q)
	}
	sort.Slice(routes, func(i, j int) bool {
		if usable[routes[i]] != usable[routes[j]] {
			return usable[routes[i]] > usable[routes[j]]
		}
		return routes[i].String() < routes[j].String()
	})
	if limit > 0 && len(routes) > limit {
		routes = routes[:limit]
	}

	out := make([]Expectation, 0, len(routes))
	for _, q := range routes {
		rec, ok := delay.Recommend(records, q.Origin, q.Destination)
		if !ok {
			continue
		}
		out = append(out, Expectation{Route: q, Result: rec, Usable: usable[q]})
	}
	return out
}

// verifyResults compares the service's answers with the expectations.
func verifyResults(ctx context.Context, cfg Config, client *HTTPClient, expected []Expectation, stats *Stats) error {
	log := logger.Get().Named("seed")
	log.Info(ctx, "verifying recommendations", logger.Int("routes", len(expected)))

	for _, want := range expected {
		got, found, err := client.Recommendation(ctx, want.Route.Origin, want.Route.Destination)
		if err != nil {
			return fmt.Errorf("recommendation for %s: %w", want.Route, err)
		}
		stats.RoutesVerified++

		if mismatch := compare(want, got.BestDate.String(), got.BestFlight.FlightNumber, got.MeanDelay, found); mismatch != "" {
			stats.RoutesMismatched++
			log.Warn(ctx, "recommendation mismatch",
				logger.String("route", want.Route.String()),
				logger.String("detail", mismatch))
			continue
		}
		if cfg.Verbose {
			log.Info(ctx, "recommendation verified",
				logger.String("route", want.Route.String()),
				logger.String("bestDate", want.Result.BestDate.String()),
				logger.String("flight", want.Result.BestFlight.FlightNumber),
				logger.Float64("meanDelay", want.Result.MeanDelay))
		}
	}

	if stats.RoutesMismatched > 0 && cfg.StrictVerify {
		return fmt.Errorf("%d of %d routes disagree with the generated data", stats.RoutesMismatched, stats.RoutesVerified)
	}
	log.Info(ctx, "verification completed",
		logger.Int("verified", stats.RoutesVerified),
		logger.Int("mismatched", stats.RoutesMismatched))
	return nil
}

// compare returns an empty string when the answer matches want.
func compare(want Expectation, bestDate, flight string, mean float64, found bool) string {
	switch {
	case !found:
		return "route not found"
	case bestDate != want.Result.BestDate.String():
		return fmt.Sprintf("best date %s, want %s", bestDate, want.Result.BestDate)
	case math.Abs(mean-want.Result.MeanDelay) > meanTolerance:
		return fmt.Sprintf("mean delay %.4f, want %.4f", mean, want.Result.MeanDelay)
	case flight != want.Result.BestFlight.FlightNumber:
		return fmt.Sprintf("best flight %s, want %s", flight, want.Result.BestFlight.FlightNumber)
	default:
		return ""
	}
}
