package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a site handler", t, func() {
		ctx := context.Background()
		r := chi.NewRouter()

		Convey("When registering the site handler", func() {
			Register(ctx, r)

			Convey("Then it should serve the landing page at /", func() {
				req := httptest.NewRequest("GET", "/", nil)
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Body.String(), ShouldContainSubstring, "/dashboard")
			})

			Convey("And it should redirect /docs", func() {
				req := httptest.NewRequest("GET", "/docs", nil)
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusMovedPermanently)
				So(w.Header().Get("Location"), ShouldEqual, "/docs/")
			})

			Convey("And it should serve the usage guide", func() {
				req := httptest.NewRequest("GET", "/docs/pages/usage.html", nil)
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "Best day to fly")
			})

			Convey("And it should not serve unknown assets", func() {
				req := httptest.NewRequest("GET", "/some-asset", nil)
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestSiteHandlerWithNilRouter(t *testing.T) {
	Convey("Given a nil router", t, func() {
		ctx := context.Background()

		Convey("When registering the site handler", func() {
			Convey("Then it should panic", func() {
				So(func() {
					Register(ctx, nil)
				}, ShouldPanic)
			})
		})
	})
}
