package render

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/okian/flightdelay/internal/domain/model"
)

// Report is the content of a recommendation PDF.
type Report struct {
	Recommendation model.Recommendation
	Daily          []model.DateAggregate
	// DistanceKM is omitted when either airport is not in the catalog.
	DistanceKM  float64
	HasDistance bool
	GeneratedAt time.Time
}

// maxDailyRows caps the table; the chart above it covers the full range.
const maxDailyRows = 31

// RecommendationReport writes r as a single page A4 PDF.
func RecommendationReport(w io.Writer, r Report) error {
	start := time.Now()
	defer observe("report", start)

	rec := r.Recommendation
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Flight delay recommendation "+rec.Route.String(), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(fmt.Sprintf("Best day to fly %s", rec.Route)))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		fmt.Sprintf("Best date: %s (mean delay %.1f min)", rec.BestDate, rec.MeanDelay),
		fmt.Sprintf("Best flight: %s by %s, %s, delay %.0f min",
			rec.BestFlight.FlightNumber, rec.BestFlight.Airline,
			rec.BestFlight.DepartureTime.Format("2006-01-02 15:04"), rec.BestFlight.DelayMinutes),
	}
	if rec.BestFlight.WeatherCondition != "" {
		lines = append(lines, "Weather on departure: "+rec.BestFlight.WeatherCondition)
	}
	if r.HasDistance {
		lines = append(lines, fmt.Sprintf("Great-circle distance: %.0f km", r.DistanceKM))
	}
	for _, l := range lines {
		pdf.Cell(0, 7, tr(l))
		pdf.Ln(7)
	}
	pdf.Ln(4)

	if len(r.Daily) > 0 {
		var png bytes.Buffer
		if err := DailyChart(&png, rec.Route, r.Daily); err != nil {
			return fmt.Errorf("daily chart: %w", err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("daily", opts, &png)
		pdf.ImageOptions("daily", pdf.GetX(), pdf.GetY(), 180, 0, true, opts, 0, "")
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(60, 7, "Date", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 7, "Mean delay (min)", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 7, "Flights", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for i, d := range r.Daily {
		if i == maxDailyRows {
			pdf.CellFormat(160, 6, fmt.Sprintf("... %d more days", len(r.Daily)-maxDailyRows), "1", 1, "L", false, 0, "")
			break
		}
		best := d.Date == rec.BestDate
		if best {
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(60, 6, d.Date.String(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, fmt.Sprintf("%.1f", d.MeanDelay), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", d.Flights), "1", 1, "R", false, 0, "")
		if best {
			pdf.SetFont("Helvetica", "", 10)
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.Cell(0, 5, "Generated "+r.GeneratedAt.UTC().Format(time.RFC3339))

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}
