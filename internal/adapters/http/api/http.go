// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/internal/domain/normalize"
	"github.com/okian/flightdelay/internal/domain/stats"
	"github.com/okian/flightdelay/internal/domain/types"
	"github.com/okian/flightdelay/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecordDependencies
	RouteDependencies
	AnalyticsDependencies
}

// RecordDependencies cover listing and ingesting records.
type RecordDependencies interface {
	// Ingest validates and queues a batch. It returns an error wrapping
	// types.ErrBackpressure when the batch could not be queued.
	Ingest(ctx context.Context, inputs []normalize.Input) (types.IngestResult, error)
	Flights(ctx context.Context, airport string, limit int) (types.FlightPage, error)
}

// RouteDependencies cover the per-route queries.
type RouteDependencies interface {
	Recommend(ctx context.Context, origin, destination string) (types.Recommendation, error)
	DailyMeans(ctx context.Context, origin, destination string) ([]model.DateAggregate, error)
	RouteMap(ctx context.Context, origin, destination string) (types.RouteMap, error)
	Report(ctx context.Context, origin, destination string) (model.Recommendation, []model.DateAggregate, *float64, error)
}

// AnalyticsDependencies cover the per-airport and data set statistics.
type AnalyticsDependencies interface {
	Airports(ctx context.Context) ([]string, error)
	AirlineDelays(ctx context.Context, airport string, unusualOnly bool) ([]stats.AirlineDelay, error)
	DelayReasons(ctx context.Context, airport string) ([]stats.ReasonCount, error)
	WeatherImpact(ctx context.Context, airport string, unusualOnly bool) ([]stats.Distribution, error)
	WeatherOutlook(ctx context.Context, airport string) ([]stats.Outlook, error)
	HourlyDelays(ctx context.Context) ([]stats.HourlyDelay, error)
	SpaceWeather(ctx context.Context) (stats.SpaceWeather, error)
}

const (
	defaultMaxRecordsLimit = 5000
	maxBodyBytes           = 8 << 20
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	recordsHandler   *RecordsHandler
	routesHandler    *RoutesHandler
	analyticsHandler *AnalyticsHandler
	chartsHandler    *ChartsHandler
	dashboardHandler *dashboardHandler

	maxRecordsLimit   int
	corsOrigins       []string
	rateLimitRequests int
	rateLimitWindow   time.Duration

	logger logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxRecordsLimit: defaultMaxRecordsLimit,
		corsOrigins:     []string{"*"},
		rateLimitWindow: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.recordsHandler = NewRecordsHandler(deps, s.maxRecordsLimit, s.logger)
	s.routesHandler = NewRoutesHandler(deps)
	s.analyticsHandler = NewAnalyticsHandler(deps)
	s.chartsHandler = NewChartsHandler(deps, deps, s.logger)
	s.dashboardHandler = newDashboardHandler()
	return s
}

// Router builds a chi router with the global middleware and every route.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	s.Register(ctx, r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Get("/dashboard", s.dashboardHandler.HandleDashboard)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit())

		r.Route("/api", func(r chi.Router) {
			r.Get("/flights", MetricsMiddleware(s.recordsHandler.HandleListFlights, "flights"))
			r.Post("/records", MetricsMiddleware(s.recordsHandler.HandlePostRecords, "records"))

			r.Get("/recommendation", MetricsMiddleware(s.routesHandler.HandleRecommendation, "recommendation"))
			r.Get("/routes/daily", MetricsMiddleware(s.routesHandler.HandleDailyMeans, "routes_daily"))
			r.Get("/route-map", MetricsMiddleware(s.routesHandler.HandleRouteMap, "route_map"))

			r.Get("/airports", MetricsMiddleware(s.analyticsHandler.HandleAirports, "airports"))
			r.Route("/airports/{code}", func(r chi.Router) {
				r.Get("/airlines", MetricsMiddleware(s.analyticsHandler.HandleAirlines, "airport_airlines"))
				r.Get("/reasons", MetricsMiddleware(s.analyticsHandler.HandleReasons, "airport_reasons"))
				r.Get("/weather-impact", MetricsMiddleware(s.analyticsHandler.HandleWeatherImpact, "airport_weather_impact"))
				r.Get("/outlook", MetricsMiddleware(s.analyticsHandler.HandleOutlook, "airport_outlook"))
			})
			r.Get("/delays/hourly", MetricsMiddleware(s.analyticsHandler.HandleHourly, "delays_hourly"))
			r.Get("/space-weather", MetricsMiddleware(s.analyticsHandler.HandleSpaceWeather, "space_weather"))
		})

		r.Get("/charts/airlines.png", MetricsMiddleware(s.chartsHandler.HandleAirlineChart, "chart_airlines"))
		r.Get("/charts/hourly.png", MetricsMiddleware(s.chartsHandler.HandleHourlyChart, "chart_hourly"))
		r.Get("/reports/recommendation.pdf", MetricsMiddleware(s.chartsHandler.HandleRecommendationReport, "report_recommendation"))
	})
}

func (s *Server) rateLimit() func(http.Handler) http.Handler {
	if s.rateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.rateLimitRequests,
		s.rateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", ErrBackpressure)
		}),
	)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps the shared error kinds to HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, types.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, types.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, types.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
