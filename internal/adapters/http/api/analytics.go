package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// AnalyticsHandler handles airport and data set statistics.
type AnalyticsHandler struct {
	deps AnalyticsDependencies
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps}
}

var errMissingAirport = errors.New("airport code is required")

func airportParam(r *http.Request) (string, error) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		return "", errMissingAirport
	}
	return code, nil
}

// unusualParam parses ?unusual=; absent means false.
func unusualParam(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("unusual")
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// HandleAirports handles GET /api/airports.
func (h *AnalyticsHandler) HandleAirports(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_airports"
	codes, err := h.deps.Airports(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, codes)
}

// HandleAirlines handles GET /api/airports/{code}/airlines?unusual=bool.
func (h *AnalyticsHandler) HandleAirlines(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_airport_airlines"
	code, err := airportParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	unusual, err := unusualParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.AirlineDelays(r.Context(), code, unusual)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleReasons handles GET /api/airports/{code}/reasons.
func (h *AnalyticsHandler) HandleReasons(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_airport_reasons"
	code, err := airportParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.DelayReasons(r.Context(), code)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleWeatherImpact handles GET /api/airports/{code}/weather-impact?unusual=bool.
func (h *AnalyticsHandler) HandleWeatherImpact(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_airport_weather_impact"
	code, err := airportParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	unusual, err := unusualParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.WeatherImpact(r.Context(), code, unusual)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleOutlook handles GET /api/airports/{code}/outlook.
func (h *AnalyticsHandler) HandleOutlook(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_airport_outlook"
	code, err := airportParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.WeatherOutlook(r.Context(), code)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleHourly handles GET /api/delays/hourly.
func (h *AnalyticsHandler) HandleHourly(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_hourly_delays"
	rows, err := h.deps.HourlyDelays(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleSpaceWeather handles GET /api/space-weather.
func (h *AnalyticsHandler) HandleSpaceWeather(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_space_weather"
	sw, err := h.deps.SpaceWeather(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sw)
}
