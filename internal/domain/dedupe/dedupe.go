// Package dedupe tracks flight record keys that were already accepted so a
// retried ingestion batch is applied at most once.
package dedupe

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

const defaultMaxSize = 100000

// ErrFull is returned by a non-evicting deduper that holds maxSize keys.
var ErrFull = errors.New("dedupe: key set full")

// Deduper records seen record keys.
type Deduper interface {
	// SeenAndRecord reports whether key was already recorded and records it
	// if not. The check and the insert are atomic. A non-evicting deduper
	// returns ErrFull instead of recording a new key past its bound.
	SeenAndRecord(ctx context.Context, key string) (bool, error)

	// Unrecord forgets key so a record that was accepted but never stored
	// (for example on queue backpressure) can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper keeps keys in a map. In bounded mode the oldest key is
// evicted first once maxSize is reached, unless eviction is disabled.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is the oldest key; nil when unbounded
	maxSize int        // <= 0 means unbounded
	noEvict bool
}

// NewInMemoryDeduper creates a deduper. The default bound is 100000 keys.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*list.Element)
	if d.maxSize > 0 {
		d.order = list.New()
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true, nil
	}

	if d.order == nil {
		d.seen[key] = nil
		return false, nil
	}

	if d.order.Len() >= d.maxSize {
		if d.noEvict {
			return false, ErrFull
		}
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[key] = d.order.PushBack(key)
	return false, nil
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.seen[key]
	if !ok {
		return
	}
	delete(d.seen, key)
	if el != nil {
		d.order.Remove(el)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
