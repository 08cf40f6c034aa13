// Package site serves the embedded landing page and usage guide.
package site

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the landing page at / and the guide under /docs/.
func Register(_ context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	root := NewRootHandler()
	r.Get("/", root.HandleRoot)
	r.Get("/docs", http.RedirectHandler("/docs/", http.StatusMovedPermanently).ServeHTTP)
	r.Handle("/docs/*", http.StripPrefix("/docs", http.FileServer(FS())))
}

// RootHandler serves the landing page.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}
