package worker

import (
	"github.com/okian/flightdelay/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithSink persists each batch to s before it is appended to memory.
func WithSink(s Sink) Option {
	return func(w *InMemoryWorker) {
		w.sink = s
	}
}

func withBatchHook(fn func(records int)) Option {
	return func(w *InMemoryWorker) {
		w.onBatch = fn
	}
}
