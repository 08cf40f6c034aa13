// Package stats derives the dashboard aggregates from a record snapshot.
// Every function is pure and takes the records it works on explicitly.
package stats

import (
	"math"
	"sort"

	"github.com/okian/flightdelay/internal/domain/model"
)

// DefaultUnusualWeather lists the conditions treated as unusual.
var DefaultUnusualWeather = []string{"Storm", "Fog", "Snow", "Heavy Rain"}

// AirlineDelay is the mean delay of one airline.
type AirlineDelay struct {
	Airline   string  `json:"airline"`
	MeanDelay float64 `json:"mean_delay"`
	Flights   int     `json:"flights"`
}

// ReasonCount is the number of delayed flights for a weather/reason pair.
type ReasonCount struct {
	WeatherCondition string `json:"weather_condition"`
	DelayReason      string `json:"delay_reason"`
	Count            int    `json:"count"`
}

// Distribution summarizes delays under one weather condition.
type Distribution struct {
	WeatherCondition string  `json:"weather_condition"`
	Count            int     `json:"count"`
	Min              float64 `json:"min"`
	Q1               float64 `json:"q1"`
	Median           float64 `json:"median"`
	Q3               float64 `json:"q3"`
	Max              float64 `json:"max"`
	Mean             float64 `json:"mean"`
}

// Outlook is the historical mean delay of a weather condition at an airport.
type Outlook struct {
	WeatherCondition string  `json:"weather_condition"`
	MeanDelay        float64 `json:"mean_delay"`
	Flights          int     `json:"flights"`
	HasData          bool    `json:"has_data"`
}

// HourlyDelay is the mean delay of departures in one hour of the day.
type HourlyDelay struct {
	Hour      int     `json:"hour"`
	MeanDelay float64 `json:"mean_delay"`
	Flights   int     `json:"flights"`
}

// SpaceWeather summarizes the geomagnetic observations of the dataset.
type SpaceWeather struct {
	AverageKp           float64 `json:"average_kp_index"`
	MaxKp               float64 `json:"max_kp_index"`
	SolarFlareIntensity string  `json:"solar_flare_intensity"`
	Observations        int     `json:"observations"`
}

// Set is a case-sensitive string set.
type Set map[string]struct{}

// NewSet builds a Set from values.
func NewSet(values []string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

type acc struct {
	sum   float64
	count int
}

func (a *acc) add(v float64) {
	a.sum += v
	a.count++
}

func (a acc) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// Airports returns the sorted distinct departure airports.
func Airports(records []model.FlightRecord) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for i := range records {
		code := records[i].DepartureAirport
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// FilterAirport returns the records departing from airport. An empty airport
// returns records unchanged.
func FilterAirport(records []model.FlightRecord, airport string) []model.FlightRecord {
	if airport == "" {
		return records
	}
	out := make([]model.FlightRecord, 0)
	for i := range records {
		if records[i].DepartureAirport == airport {
			out = append(out, records[i])
		}
	}
	return out
}

// AirlineMeans returns the mean delay per airline at airport, sorted by
// airline. When unusual is non-nil only records under those conditions count.
func AirlineMeans(records []model.FlightRecord, airport string, unusual Set) []AirlineDelay {
	byAirline := make(map[string]*acc)
	for i := range records {
		r := &records[i]
		if r.DepartureAirport != airport || !r.HasDelay() {
			continue
		}
		if unusual != nil && !unusual.Has(r.WeatherCondition) {
			continue
		}
		a, ok := byAirline[r.Airline]
		if !ok {
			a = &acc{}
			byAirline[r.Airline] = a
		}
		a.add(r.DelayMinutes)
	}

	out := make([]AirlineDelay, 0, len(byAirline))
	for name, a := range byAirline {
		out = append(out, AirlineDelay{Airline: name, MeanDelay: a.mean(), Flights: a.count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Airline < out[j].Airline })
	return out
}

// DelayReasons counts delayed flights at airport per weather condition and
// delay reason, restricted to unusual conditions. Rows without a reason or a
// delay are skipped.
func DelayReasons(records []model.FlightRecord, airport string, unusual Set) []ReasonCount {
	type key struct{ weather, reason string }
	counts := make(map[key]int)
	for i := range records {
		r := &records[i]
		if r.DepartureAirport != airport || r.DelayReason == "" || !r.HasDelay() || !unusual.Has(r.WeatherCondition) {
			continue
		}
		counts[key{r.WeatherCondition, r.DelayReason}]++
	}

	out := make([]ReasonCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, ReasonCount{WeatherCondition: k.weather, DelayReason: k.reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeatherCondition != out[j].WeatherCondition {
			return out[i].WeatherCondition < out[j].WeatherCondition
		}
		return out[i].DelayReason < out[j].DelayReason
	})
	return out
}

// WeatherImpact returns the delay distribution per weather condition at
// airport, sorted by condition. When unusual is non-nil only those conditions
// are reported.
func WeatherImpact(records []model.FlightRecord, airport string, unusual Set) []Distribution {
	byCondition := make(map[string][]float64)
	for i := range records {
		r := &records[i]
		if r.DepartureAirport != airport || !r.HasDelay() || r.WeatherCondition == "" {
			continue
		}
		if unusual != nil && !unusual.Has(r.WeatherCondition) {
			continue
		}
		byCondition[r.WeatherCondition] = append(byCondition[r.WeatherCondition], r.DelayMinutes)
	}

	out := make([]Distribution, 0, len(byCondition))
	for cond, values := range byCondition {
		out = append(out, Describe(cond, values))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeatherCondition < out[j].WeatherCondition })
	return out
}

// Describe computes the five-number summary and mean of values. Quartiles use
// linear interpolation between closest ranks.
func Describe(condition string, values []float64) Distribution {
	d := Distribution{WeatherCondition: condition, Count: len(values)}
	if len(values) == 0 {
		return d
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	d.Min = sorted[0]
	d.Max = sorted[len(sorted)-1]
	d.Q1 = Quantile(sorted, 0.25)
	d.Median = Quantile(sorted, 0.5)
	d.Q3 = Quantile(sorted, 0.75)
	d.Mean = sum / float64(len(sorted))
	return d
}

// Quantile returns the q-th quantile of an ascending slice.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// WeatherOutlook reports the historical mean delay at airport for each of the
// given conditions, in the given order. Conditions never observed are
// returned with HasData false.
func WeatherOutlook(records []model.FlightRecord, airport string, conditions []string) []Outlook {
	byCondition := make(map[string]*acc, len(conditions))
	for _, c := range conditions {
		byCondition[c] = &acc{}
	}
	for i := range records {
		r := &records[i]
		if r.DepartureAirport != airport || !r.HasDelay() {
			continue
		}
		if a, ok := byCondition[r.WeatherCondition]; ok {
			a.add(r.DelayMinutes)
		}
	}

	out := make([]Outlook, 0, len(conditions))
	for _, c := range conditions {
		a := byCondition[c]
		out = append(out, Outlook{
			WeatherCondition: c,
			MeanDelay:        a.mean(),
			Flights:          a.count,
			HasData:          a.count > 0,
		})
	}
	return out
}

// Hourly returns the mean delay per departure hour, for hours that have at
// least one usable record, in ascending order.
func Hourly(records []model.FlightRecord) []HourlyDelay {
	var hours [24]acc
	for i := range records {
		r := &records[i]
		if !r.Usable() {
			continue
		}
		hours[r.DepartureTime.Hour()].add(r.DelayMinutes)
	}

	out := make([]HourlyDelay, 0, 24)
	for h, a := range hours {
		if a.count == 0 {
			continue
		}
		out = append(out, HourlyDelay{Hour: h, MeanDelay: a.mean(), Flights: a.count})
	}
	return out
}

// SpaceWeatherSummary averages the Kp index and finds the most frequent solar
// flare intensity. ok is false when no record carries a Kp index.
func SpaceWeatherSummary(records []model.FlightRecord) (SpaceWeather, bool) {
	var kp acc
	maxKp := math.Inf(-1)
	flares := make(map[string]int)
	for i := range records {
		r := &records[i]
		if r.KpKnown {
			kp.add(r.KpIndex)
			if r.KpIndex > maxKp {
				maxKp = r.KpIndex
			}
		}
		if r.SolarFlareIntensity != "" {
			flares[r.SolarFlareIntensity]++
		}
	}
	if kp.count == 0 {
		return SpaceWeather{}, false
	}
	return SpaceWeather{
		AverageKp:           math.Round(kp.mean()*10) / 10,
		MaxKp:               maxKp,
		SolarFlareIntensity: mode(flares),
		Observations:        kp.count,
	}, true
}

// mode returns the most frequent key; ties go to the smallest key.
func mode(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}
