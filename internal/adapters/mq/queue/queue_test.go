package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/flightdelay/internal/domain/model"
)

func batch(id string, n int) Batch {
	recs := make([]model.FlightRecord, n)
	for i := range recs {
		recs[i] = model.FlightRecord{FlightNumber: fmt.Sprintf("%s-%d", id, i)}
	}
	return Batch{ID: id, Records: recs, ReceivedAt: time.Now()}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if err := q.Enqueue(ctx, batch("b1", 3)); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "b1" || len(got.Records) != 3 {
		t.Errorf("unexpected batch %+v", got)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"b1", "b2"} {
		if err := q.Enqueue(ctx, batch(id, 1)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	if err := q.Enqueue(ctx, batch("b3", 1)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	if err := q.Enqueue(ctx, batch("b1", 1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if err := q.Enqueue(ctx, batch("b2", 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// queued batches drain after close
	var ids []string
	for b := range q.Dequeue(ctx) {
		ids = append(ids, b.ID)
	}
	if len(ids) != 1 || ids[0] != "b1" {
		t.Errorf("expected b1 to drain, got %v", ids)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, batch("b1", 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_DequeueStopsOnContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx, cancel := context.WithCancel(context.Background())

	_ = q.Enqueue(context.Background(), batch("b1", 1))
	_ = q.Enqueue(context.Background(), batch("b2", 1))
	ch := q.Dequeue(ctx)
	<-ch
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("dequeue channel did not close")
		}
	}
}

func TestInMemoryQueue_FIFO(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, batch(fmt.Sprintf("b%d", i), 1)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	_ = q.Close()

	i := 0
	for b := range q.Dequeue(ctx) {
		if want := fmt.Sprintf("b%d", i); b.ID != want {
			t.Errorf("expected %s, got %s", want, b.ID)
		}
		i++
	}
	if i != 5 {
		t.Errorf("expected 5 batches, got %d", i)
	}
}
