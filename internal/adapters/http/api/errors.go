package api

import (
	"errors"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
)

// Error records the handler operation that failed together with the error
// kind and, when present, the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Kind == nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap attributes err to op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind attributes err to op and classifies it as kind.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return NewKind(op, kind)
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
