package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/okian/flightdelay/internal/domain/normalize"
	"github.com/okian/flightdelay/pkg/logger"
)

// invalidTimestamp is sent for dirty records; the service rejects it.
const invalidTimestamp = "N/A"

type weather struct {
	name    string
	weight  int
	base    float64
	reasons []string
}

// weathers drive both the condition mix and the delay each condition adds.
var weathers = []weather{
	{name: "Clear", weight: 50, base: 6, reasons: []string{"Crew", "Maintenance", "Security"}},
	{name: "Cloudy", weight: 20, base: 9, reasons: []string{"Crew", "ATC"}},
	{name: "Rain", weight: 12, base: 16, reasons: []string{"Weather", "ATC"}},
	{name: "Heavy Rain", weight: 6, base: 35, reasons: []string{"Weather", "ATC"}},
	{name: "Fog", weight: 5, base: 30, reasons: []string{"Weather", "ATC"}},
	{name: "Snow", weight: 4, base: 45, reasons: []string{"Weather", "De-icing"}},
	{name: "Storm", weight: 3, base: 60, reasons: []string{"Weather", "ATC"}},
}

var flareClasses = []string{"A", "B", "C", "M", "X"}

// Generator produces a reproducible synthetic data set. Record i depends only
// on the seed and i, so generation can be split across goroutines.
type Generator struct {
	cfg         Config
	totalWeight int
	codes       map[string]string
}

// NewGenerator creates a generator for cfg.
func NewGenerator(cfg Config) *Generator {
	cfg = cfg.withDefaults()
	g := &Generator{cfg: cfg, codes: make(map[string]string, len(cfg.Airlines))}
	for _, w := range weathers {
		g.totalWeight += w.weight
	}
	for _, a := range cfg.Airlines {
		g.codes[a] = airlineCode(a)
	}
	return g
}

// Generate creates cfg.Records inputs using cfg.Workers goroutines.
func (g *Generator) Generate(ctx context.Context) ([]normalize.Input, error) {
	n := g.cfg.Records
	logger.Get().Info(ctx, "generating records", logger.Int("records", n), logger.Int("days", g.cfg.Days))

	inputs := make([]normalize.Input, n)
	if n == 0 {
		return inputs, nil
	}

	type result struct {
		index int
		err   error
	}
	resultChan := make(chan result, n)

	workerCount := min(g.cfg.Workers, n)
	perWorker := n / workerCount
	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = n
		}
		go func(start, end int) {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					resultChan <- result{index: i, err: err}
					return
				}
				inputs[i] = g.Record(i)
				resultChan <- result{index: i}
			}
		}(start, end)
	}

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during generation: %w", ctx.Err())
		case r := <-resultChan:
			if r.err != nil {
				return nil, fmt.Errorf("failed to generate record %d: %w", r.index, r.err)
			}
		}
	}

	logger.Get().Info(ctx, "generated records", logger.Int("count", n))
	return inputs, nil
}

// Record returns the i-th record of the data set.
func (g *Generator) Record(i int) normalize.Input {
	rng := rand.New(rand.NewPCG(g.cfg.Seed, uint64(i)))

	origin := g.cfg.Airports[rng.IntN(len(g.cfg.Airports))]
	destination := g.cfg.Airports[rng.IntN(len(g.cfg.Airports)-1)]
	if destination == origin {
		destination = g.cfg.Airports[len(g.cfg.Airports)-1]
	}
	airline := g.cfg.Airlines[rng.IntN(len(g.cfg.Airlines))]
	w := g.weather(rng)

	day := g.cfg.Start.AddDate(0, 0, rng.IntN(g.cfg.Days))
	departure := time.Date(day.Year(), day.Month(), day.Day(), 5+rng.IntN(18), 5*rng.IntN(12), 0, 0, time.UTC)

	// Later departures pick up knock-on delays.
	delay := w.base*(0.25+rng.Float64()) + float64(departure.Hour()-5)*0.8 + rng.ExpFloat64()*4
	delay = math.Round(delay)

	in := normalize.Input{
		FlightNumber:     g.codes[airline] + strconv.Itoa(100+i),
		DepartureAirport: origin,
		ArrivalAirport:   destination,
		Airline:          airline,
		DepartureTime:    departure.Format(time.RFC3339),
		DelayMinutes:     &delay,
		Status:           status(delay),
		WeatherCondition: w.name,
	}
	if delay > 0 {
		in.DelayReason = w.reasons[rng.IntN(len(w.reasons))]
	}
	if rng.Float64() < 0.4 {
		kp := math.Round(rng.Float64()*90) / 10
		in.KpIndex = &kp
		in.SolarFlareIntensity = flareClasses[rng.IntN(len(flareClasses))]
	}

	if rng.Float64() < g.cfg.DirtyRatio {
		if rng.IntN(2) == 0 {
			in.DelayMinutes = nil
			in.Status = "Unknown"
		} else {
			in.DepartureTime = invalidTimestamp
		}
	}
	return in
}

func (g *Generator) weather(rng *rand.Rand) weather {
	n := rng.IntN(g.totalWeight)
	for _, w := range weathers {
		if n < w.weight {
			return w
		}
		n -= w.weight
	}
	return weathers[0]
}

func status(delay float64) string {
	if delay > 15 {
		return "Delayed"
	}
	return "On Time"
}

// airlineCode derives a two letter designator: initials of multi-word names,
// otherwise the first two letters.
func airlineCode(name string) string {
	words := strings.Fields(strings.ToUpper(name))
	switch {
	case len(words) == 0:
		return "XX"
	case len(words) > 1:
		return words[0][:1] + words[1][:1]
	case len(words[0]) > 1:
		return words[0][:2]
	default:
		return words[0] + "X"
	}
}

func (c Config) withDefaults() Config {
	if c.Records < 0 {
		c.Records = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if len(c.Airports) < 2 {
		c.Airports = DefaultAirports
	}
	if len(c.Airlines) == 0 {
		c.Airlines = DefaultAirlines
	}
	if c.Start.IsZero() {
		c.Start = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if c.Days <= 0 {
		c.Days = DefaultDays
	}
	if c.VerifyRoutes <= 0 {
		c.VerifyRoutes = DefaultVerifyRoutes
	}
	c.DirtyRatio = math.Max(0, math.Min(1, c.DirtyRatio))
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}
