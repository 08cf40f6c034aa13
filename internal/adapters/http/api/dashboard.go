package api

import (
	"net/http"
)

// dashboardHandler serves the embedded operator dashboard.
type dashboardHandler struct{}

func newDashboardHandler() *dashboardHandler {
	return &dashboardHandler{}
}

// HandleDashboard handles GET /dashboard requests.
// The page polls /stats and the JSON endpoints and draws them client side.
func (h *dashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, dashboardFS, "dashboard.html")
}
