package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrClosed   = errors.New("store closed")
	ErrCapacity = errors.New("store capacity exceeded")
)
