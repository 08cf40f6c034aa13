// Package worker applies queued ingestion batches to the record store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/flightdelay/internal/adapters/mq/queue"
	"github.com/okian/flightdelay/internal/domain/model"
	"github.com/okian/flightdelay/pkg/logger"
	"github.com/okian/flightdelay/pkg/metrics"
)

const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Appender stores a batch of records as one unit.
type Appender interface {
	Append(ctx context.Context, records []model.FlightRecord) (int, error)
}

// Sink durably persists records before they are appended to memory.
type Sink interface {
	Insert(ctx context.Context, records []model.FlightRecord) (int, error)
}

// Queue defines how workers receive batches.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Batch
}

// Worker consumes batches until its queue closes.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker applies batches to an Appender and an optional Sink.
type InMemoryWorker struct {
	queue    Queue
	appender Appender
	sink     Sink
	name     string
	onBatch  func(records int)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q and writing to appender.
func NewInMemoryWorker(q Queue, appender Appender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		appender: appender,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	batches := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			if err := w.processBatch(ctx, b); err != nil {
				w.logger.Error(ctx, "error processing batch",
					logger.String("batch_id", b.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown signals the loop to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when the worker loop has exited.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) processBatch(ctx context.Context, b queue.Batch) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if w.sink != nil {
		if _, err := w.sink.Insert(ctx, b.Records); err != nil {
			// the in-memory view still gets the batch; the sink is best effort
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "sink_error")
			w.logger.Warn(ctx, "sink insert failed",
				logger.String("batch_id", b.ID),
				logger.Int("records", len(b.Records)),
				logger.Error(err),
			)
		}
	}

	n, err := w.appender.Append(ctx, b.Records)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		metrics.RecordErrorByType("store_error", "high")
		return fmt.Errorf("append batch %s: %w", b.ID, err)
	}

	metrics.RecordRecordIngested(n)
	if w.onBatch != nil {
		w.onBatch(n)
	}
	w.logger.Debug(ctx, "batch applied",
		logger.String("batch_id", b.ID),
		logger.Int("records", n),
		logger.Duration("queued_for", start.Sub(b.ReceivedAt)),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown     chan struct{}
	shutdownOnce sync.Once

	processed         atomic.Int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates count workers sharing q. A non-positive count uses one
// worker per CPU.
func NewPool(count int, q Queue, appender Appender, opts ...Option) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}

	p := &Pool{
		workers:           make([]*InMemoryWorker, count),
		queue:             q,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}

	for i := 0; i < count; i++ {
		workerOpts := append([]Option{
			WithName("worker-" + strconv.Itoa(i)),
			withBatchHook(p.recordProcessed),
		}, opts...)
		p.workers[i] = NewInMemoryWorker(q, appender, workerOpts...)
	}

	metrics.UpdateWorkerCount(count)
	metrics.UpdateWorkerMessagesPerSecond(0)

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	now := time.Now()
	elapsed := now.Sub(p.lastProcessedTime).Seconds()
	if elapsed > 0 {
		metrics.UpdateWorkerMessagesPerSecond(float64(p.processed.Swap(0)) / elapsed)
	}
	p.lastProcessedTime = now
}

func (p *Pool) recordProcessed(int) {
	p.processed.Add(1)
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	p.shutdownOnce.Do(func() { close(p.shutdown) })
	if timedOut {
		for _, w := range p.workers {
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
