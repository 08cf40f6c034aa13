package api

import (
	"net/http"
)

// RoutesHandler handles the per-route queries.
type RoutesHandler struct {
	deps RouteDependencies
}

// NewRoutesHandler creates a new routes handler.
func NewRoutesHandler(deps RouteDependencies) *RoutesHandler {
	return &RoutesHandler{deps: deps}
}

func route(r *http.Request) (string, string) {
	q := r.URL.Query()
	return q.Get("origin"), q.Get("destination")
}

// HandleRecommendation handles GET /api/recommendation?origin=A&destination=B.
func (h *RoutesHandler) HandleRecommendation(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_recommendation"
	origin, destination := route(r)
	rec, err := h.deps.Recommend(r.Context(), origin, destination)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleDailyMeans handles GET /api/routes/daily?origin=A&destination=B.
func (h *RoutesHandler) HandleDailyMeans(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_daily_means"
	origin, destination := route(r)
	days, err := h.deps.DailyMeans(r.Context(), origin, destination)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// HandleRouteMap handles GET /api/route-map?origin=A&destination=B.
func (h *RoutesHandler) HandleRouteMap(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_route_map"
	origin, destination := route(r)
	m, err := h.deps.RouteMap(r.Context(), origin, destination)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
