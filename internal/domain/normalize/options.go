package normalize

import "time"

// Option applies a configuration option to the Validating normalizer.
type Option func(*Validating)

// WithTimeLayouts replaces the accepted departure_time layouts. Layouts are
// tried in order.
func WithTimeLayouts(layouts ...string) Option {
	return func(v *Validating) {
		if len(layouts) > 0 {
			v.layouts = append([]string(nil), layouts...)
		}
	}
}

// WithLocation sets the location used for timestamps without a zone offset.
func WithLocation(loc *time.Location) Option {
	return func(v *Validating) {
		if loc != nil {
			v.loc = loc
		}
	}
}
