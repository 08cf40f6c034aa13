package types

import "errors"

// Error kinds shared by the service and its transports.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrBackpressure = errors.New("backpressure")
	ErrUnavailable  = errors.New("service unavailable")
)
