package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/flightdelay/internal/render"
	"github.com/okian/flightdelay/pkg/logger"
)

// ChartsHandler serves PNG charts and PDF reports.
type ChartsHandler struct {
	analytics AnalyticsDependencies
	routes    RouteDependencies
	logger    logger.Logger
}

// NewChartsHandler creates a new charts handler.
func NewChartsHandler(analytics AnalyticsDependencies, routes RouteDependencies, l logger.Logger) *ChartsHandler {
	return &ChartsHandler{analytics: analytics, routes: routes, logger: l}
}

// HandleAirlineChart handles GET /charts/airlines.png?airport=XXX&unusual=bool.
func (h *ChartsHandler) HandleAirlineChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.chart_airlines"
	airport := r.URL.Query().Get("airport")
	if airport == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingAirport))
		return
	}
	unusual, err := unusualParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.analytics.AirlineDelays(r.Context(), airport, unusual)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	var buf bytes.Buffer
	err = render.AirlineChart(&buf, airport, rows)
	h.write(w, r, op, "image/png", &buf, err)
}

// HandleHourlyChart handles GET /charts/hourly.png.
func (h *ChartsHandler) HandleHourlyChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.chart_hourly"
	rows, err := h.analytics.HourlyDelays(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	var buf bytes.Buffer
	err = render.HourlyChart(&buf, rows)
	h.write(w, r, op, "image/png", &buf, err)
}

// HandleRecommendationReport handles GET /reports/recommendation.pdf?origin=A&destination=B.
func (h *ChartsHandler) HandleRecommendationReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.report_recommendation"
	origin, destination := route(r)
	rec, daily, distance, err := h.routes.Report(r.Context(), origin, destination)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	report := render.Report{
		Recommendation: rec,
		Daily:          daily,
		GeneratedAt:    time.Now().UTC(),
	}
	if distance != nil {
		report.DistanceKM = *distance
		report.HasDistance = true
	}

	var buf bytes.Buffer
	err = render.RecommendationReport(&buf, report)
	h.write(w, r, op, "application/pdf", &buf, err)
}

// write sends a rendered body, or the matching error when rendering failed.
func (h *ChartsHandler) write(w http.ResponseWriter, r *http.Request, op, contentType string, buf *bytes.Buffer, err error) {
	if err != nil {
		if errors.Is(err, render.ErrNoData) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		h.logger.Error(r.Context(), "render failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
