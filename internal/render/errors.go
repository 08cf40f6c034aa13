package render

import "errors"

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("render: no data")
