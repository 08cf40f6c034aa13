package normalize

import "errors"

var (
	// ErrInvalidRecord is returned when a record fails field validation.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidTimestamp is returned when departure_time matches no known layout.
	ErrInvalidTimestamp = errors.New("invalid departure_time")
)
