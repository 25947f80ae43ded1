// Package dedupe tracks snapshot ids so each document is aggregated at most once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/groupcache/lru"
)

// DefaultMaxSize bounds the number of remembered snapshot ids.
const DefaultMaxSize = 50000

// Deduper records seen snapshot ids.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a snapshot rejected downstream can be resent.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper remembers the most recently used ids. When bounded, the
// least recently seen id is evicted first; resending an id refreshes it.
type inMemoryDeduper struct {
	mu      sync.Mutex
	maxSize int
	recent  *lru.Cache
	size    atomic.Int64
}

// NewInMemoryDeduper creates a deduper holding up to DefaultMaxSize ids.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}

	// lru treats 0 as unbounded.
	d.recent = lru.New(max(d.maxSize, 0))
	d.recent.OnEvicted = func(lru.Key, any) { d.size.Add(-1) }
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.recent.Get(id); ok {
		return true
	}
	d.size.Add(1)
	d.recent.Add(id, struct{}{})
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.recent.Remove(id)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
