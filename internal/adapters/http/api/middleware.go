// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/flightdelay/pkg/metrics"
)

// MetricsMiddleware records request count, latency and error class for the
// named endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		elapsed := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(sw.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, elapsed)

		if sw.status < http.StatusBadRequest {
			return
		}
		class := errorClass(sw.status)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, class)
		metrics.RecordErrorByType(class, errorSeverity(sw.status))
		metrics.RecordErrorLatency("http", class, elapsed)
	}
}

// errorClass names a failed status after the error codes the handlers write.
func errorClass(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "backpressure"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	if status >= http.StatusInternalServerError {
		return "internal"
	}
	return "bad_request"
}

// errorSeverity: a missing route or a throttled batch is routine, a 5xx is not.
func errorSeverity(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "high"
	case status == http.StatusNotFound, status == http.StatusTooManyRequests:
		return "low"
	default:
		return "medium"
	}
}

// statusWriter captures the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
