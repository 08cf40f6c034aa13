package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of remembered keys. Zero or a negative value
// disables eviction.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithoutEviction makes a bounded deduper refuse new keys with ErrFull once
// it is full instead of forgetting the oldest one.
func WithoutEviction() Option {
	return func(d *inMemoryDeduper) {
		d.noEvict = true
	}
}
