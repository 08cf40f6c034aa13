// Package render draws delay aggregates as PNG charts and PDF reports.
package render

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/internal/domain/stats"
	"github.com/okian/flightdelay/pkg/metrics"
	chart "github.com/wcharczuk/go-chart"
)

const (
	chartHeight = 480
	minWidth    = 640
	barWidth    = 48
	barSpacing  = 24
)

// AirlineChart writes a bar chart of mean delay per airline as PNG.
func AirlineChart(w io.Writer, airport string, rows []stats.AirlineDelay) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	start := time.Now()
	defer observe("airlines", start)

	bars := make([]chart.Value, 0, len(rows))
	var top float64
	for _, r := range rows {
		bars = append(bars, chart.Value{Label: r.Airline, Value: r.MeanDelay})
		top = math.Max(top, r.MeanDelay)
	}

	graph := chart.BarChart{
		Title:      fmt.Sprintf("Mean departure delay by airline at %s", airport),
		TitleStyle: chart.Style{Show: true},
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      max(minWidth, len(bars)*(barWidth+barSpacing)+120),
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis:      chart.Style{Show: true},
		YAxis: chart.YAxis{
			Style:          chart.Style{Show: true},
			Range:          &chart.ContinuousRange{Min: 0, Max: ceiling(top)},
			ValueFormatter: minutes,
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}

// HourlyChart writes a line chart of mean delay per departure hour as PNG.
func HourlyChart(w io.Writer, rows []stats.HourlyDelay) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	start := time.Now()
	defer observe("hourly", start)

	xs := make([]float64, 0, len(rows))
	ys := make([]float64, 0, len(rows))
	var top float64
	for _, r := range rows {
		xs = append(xs, float64(r.Hour))
		ys = append(ys, r.MeanDelay)
		top = math.Max(top, r.MeanDelay)
	}

	graph := chart.Chart{
		Title:      "Mean departure delay by hour of day",
		TitleStyle: chart.Style{Show: true},
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      minWidth * 3 / 2,
		Height:     chartHeight,
		XAxis: chart.XAxis{
			Name:      "Hour",
			NameStyle: chart.Style{Show: true},
			Style:     chart.Style{Show: true},
			Range:     &chart.ContinuousRange{Min: 0, Max: 23},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%02.0f:00", f)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name:           "Delay (min)",
			NameStyle:      chart.Style{Show: true},
			Style:          chart.Style{Show: true},
			Range:          &chart.ContinuousRange{Min: 0, Max: ceiling(top)},
			ValueFormatter: minutes,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: "mean delay", XValues: xs, YValues: ys},
		},
	}
	return graph.Render(chart.PNG, w)
}

// DailyChart writes a line chart of a route's daily mean delays as PNG.
func DailyChart(w io.Writer, route model.RouteQuery, rows []model.DateAggregate) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	start := time.Now()
	defer observe("daily", start)

	xs := make([]time.Time, 0, len(rows))
	ys := make([]float64, 0, len(rows))
	var top float64
	for _, r := range rows {
		xs = append(xs, r.Date.In(time.UTC))
		ys = append(ys, r.MeanDelay)
		top = math.Max(top, r.MeanDelay)
	}
	// pad by half a day so a single day still spans a range
	lo := xs[0].Add(-12 * time.Hour)
	hi := xs[len(xs)-1].Add(12 * time.Hour)

	graph := chart.Chart{
		Title:      fmt.Sprintf("Daily mean delay %s", route),
		TitleStyle: chart.Style{Show: true},
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      minWidth * 3 / 2,
		Height:     chartHeight,
		XAxis: chart.XAxis{
			Style: chart.Style{Show: true},
			Range: &chart.ContinuousRange{Min: float64(lo.UnixNano()), Max: float64(hi.UnixNano())},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return time.Unix(0, int64(f)).UTC().Format("Jan 2")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Style:          chart.Style{Show: true},
			Range:          &chart.ContinuousRange{Min: 0, Max: ceiling(top)},
			ValueFormatter: minutes,
		},
		Series: []chart.Series{
			chart.TimeSeries{Name: route.String(), XValues: xs, YValues: ys},
		},
	}
	return graph.Render(chart.PNG, w)
}

func minutes(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}

// ceiling leaves headroom above the tallest value and never returns zero,
// which the chart library rejects as an empty range.
func ceiling(top float64) float64 {
	if top <= 0 {
		return 1
	}
	return math.Ceil(top * 1.1)
}

func observe(kind string, start time.Time) {
	metrics.RecordRenderLatency(kind, float64(time.Since(start).Microseconds())/1000)
}
