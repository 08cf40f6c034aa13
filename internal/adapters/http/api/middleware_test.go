package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/flightdelay/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorClass(t *testing.T) {
	Convey("Then failed statuses map to the handler error codes", t, func() {
		So(errorClass(http.StatusBadRequest), ShouldEqual, "bad_request")
		So(errorClass(http.StatusNotFound), ShouldEqual, "not_found")
		So(errorClass(http.StatusRequestEntityTooLarge), ShouldEqual, "too_large")
		So(errorClass(http.StatusTooManyRequests), ShouldEqual, "backpressure")
		So(errorClass(http.StatusServiceUnavailable), ShouldEqual, "unavailable")
		So(errorClass(http.StatusInternalServerError), ShouldEqual, "internal")
		So(errorSeverity(http.StatusNotFound), ShouldEqual, "low")
		So(errorSeverity(http.StatusBadRequest), ShouldEqual, "medium")
		So(errorSeverity(http.StatusBadGateway), ShouldEqual, "high")
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given an instrumented handler that writes 404", t, func() {
		h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, "middleware_test")

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		Convey("Then the status passes through and the request is counted", func() {
			So(w.Code, ShouldEqual, http.StatusNotFound)
			n, err := testutil.GatherAndCount(metrics.GetRegistry(), "flightdelay_analytics_http_requests_total")
			So(err, ShouldBeNil)
			So(n, ShouldBeGreaterThan, 0)
		})
	})
}
