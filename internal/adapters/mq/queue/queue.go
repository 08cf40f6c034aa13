// Package queue buffers ingestion batches between the HTTP handlers and the
// worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Batch is the payload flowing through the queue.
type Batch = model.Batch

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a batch. It returns ErrFull when the queue is at capacity
	// and ErrClosed after Close.
	Enqueue(ctx context.Context, b Batch) error

	// Dequeue returns a channel that receives batches until the queue is
	// closed and drained.
	Dequeue(ctx context.Context) <-chan Batch

	// Len returns the number of queued batches.
	Len(ctx context.Context) int

	// Close stops accepting batches. Queued batches are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	batches  chan Batch
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.batches = make(chan Batch, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)

	return q
}

// Enqueue adds b without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, b Batch) error {
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.batches <- b:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue forwards queued batches until the queue is closed or ctx ends.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Batch {
	out := make(chan Batch)
	go func() {
		defer close(out)
		for {
			var b Batch
			select {
			case next, ok := <-q.batches:
				if !ok {
					return
				}
				b = next
			case <-ctx.Done():
				return
			}
			select {
			case out <- b:
				metrics.RecordQueueDequeue()
				q.observe()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of queued batches.
func (q *InMemoryQueue) Len(context.Context) int {
	q.observe()
	return len(q.batches)
}

// Capacity returns the configured bound.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops accepting new batches. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.batches)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	size := len(q.batches)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
