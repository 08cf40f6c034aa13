package api

import (
	"time"

	"github.com/okian/flightdelay/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxRecordsLimit caps the limit accepted by GET /api/flights.
func WithMaxRecordsLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRecordsLimit = n
		}
	}
}

// WithCORSOrigins sets the browser origins allowed to call the API.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = append([]string(nil), origins...)
		}
	}
}

// WithRateLimit allows requests per window per client IP. A non-positive
// requests disables rate limiting.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimitRequests = requests
		if window > 0 {
			s.rateLimitWindow = window
		}
	}
}

// WithLogger sets a custom logger for request failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
