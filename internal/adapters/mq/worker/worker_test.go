package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/flightdelay/internal/adapters/mq/queue"
	worker "github.com/okian/flightdelay/internal/adapters/mq/worker"
	model "github.com/okian/flightdelay/internal/domain/model"
	logging "github.com/okian/flightdelay/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan queue.Batch
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan queue.Batch, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Batch {
	return mq.ch
}

func (mq *mockQueue) Close() error {
	close(mq.ch)
	return nil
}

type mockAppender struct {
	mu      sync.Mutex
	batches [][]model.FlightRecord
	err     error
}

func (m *mockAppender) Append(_ context.Context, records []model.FlightRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.batches = append(m.batches, records)
	return len(records), nil
}

func (m *mockAppender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

type mockSink struct {
	mu       sync.Mutex
	inserted int
	err      error
}

func (m *mockSink) Insert(_ context.Context, records []model.FlightRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.inserted += len(records)
	return len(records), nil
}

func batch(id string, n int) queue.Batch {
	recs := make([]model.FlightRecord, n)
	for i := range recs {
		recs[i] = model.FlightRecord{FlightNumber: fmt.Sprintf("%s-%d", id, i), DepartureAirport: "JFK", ArrivalAirport: "LAX"}
	}
	return queue.Batch{ID: id, Records: recs, ReceivedAt: time.Now()}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a worker with an appender", t, func() {
		q := newMockQueue()
		app := &mockAppender{}
		w := worker.NewInMemoryWorker(q, app, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When batches are queued", func() {
			q.ch <- batch("b1", 3)
			q.ch <- batch("b2", 2)

			convey.Convey("Then each batch is appended whole", func() {
				convey.So(eventually(func() bool { return app.count() == 5 }), convey.ShouldBeTrue)
				app.mu.Lock()
				convey.So(len(app.batches), convey.ShouldEqual, 2)
				convey.So(len(app.batches[0]), convey.ShouldEqual, 3)
				app.mu.Unlock()
			})
		})

		convey.Convey("When the queue closes", func() {
			_ = q.Close()

			convey.Convey("Then the worker exits", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					t.Fatal("worker did not exit")
				}
			})
		})

		convey.Convey("When shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops without error and a second call is safe", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a failing appender", t, func() {
		q := newMockQueue()
		app := &mockAppender{err: errors.New("store closed")}
		sink := &mockSink{}
		w := worker.NewInMemoryWorker(q, app, worker.WithSink(sink))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		q.ch <- batch("b1", 2)
		_ = q.Close()
		<-w.Done()

		convey.Convey("Then the worker keeps running until the queue closes and the sink still saw the batch", func() {
			convey.So(app.count(), convey.ShouldEqual, 0)
			convey.So(sink.inserted, convey.ShouldEqual, 2)
		})
	})

	convey.Convey("Given a failing sink", t, func() {
		q := newMockQueue()
		app := &mockAppender{}
		sink := &mockSink{err: errors.New("connection refused")}
		w := worker.NewInMemoryWorker(q, app, worker.WithSink(sink))
		go w.Run(context.Background())

		q.ch <- batch("b1", 4)
		_ = q.Close()
		<-w.Done()

		convey.Convey("Then the batch still reaches the in-memory store", func() {
			convey.So(app.count(), convey.ShouldEqual, 4)
		})
	})
}

func TestPool(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		app := &mockAppender{}
		pool := worker.NewPool(4, q, app)
		pool.Start(context.Background())

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When batches are enqueued and the pool shuts down", func() {
			for i := 0; i < 20; i++ {
				convey.So(q.Enqueue(context.Background(), batch(fmt.Sprintf("b%d", i), 5)), convey.ShouldBeNil)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued batch is drained", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(app.count(), convey.ShouldEqual, 100)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), &mockAppender{})

		convey.Convey("Then one worker per CPU is created", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
