package service

import (
	"fmt"

	"github.com/okian/flightdelay/internal/domain/types"
)

// Sentinel errors returned by Service. Each wraps a shared kind from the
// types package so transports can map them without importing this package.
var (
	ErrNotStarted     = fmt.Errorf("%w: service not started", types.ErrUnavailable)
	ErrRouteNotFound  = fmt.Errorf("%w: no delay data for route", types.ErrNotFound)
	ErrNoSpaceWeather = fmt.Errorf("%w: no geomagnetic observations", types.ErrNotFound)
	ErrInvalidRoute   = fmt.Errorf("%w: origin and destination are required", types.ErrInvalidInput)
	ErrEmptyBatch     = fmt.Errorf("%w: batch has no records", types.ErrInvalidInput)
	ErrBatchTooLarge  = fmt.Errorf("%w: batch too large", types.ErrInvalidInput)
	ErrQueueFull      = fmt.Errorf("%w: ingestion queue is full", types.ErrBackpressure)
)
