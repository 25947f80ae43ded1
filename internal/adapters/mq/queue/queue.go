// Package queue buffers accepted snapshots between ingestion and the workers.
package queue

import (
	"context"
	"sync"

	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/pkg/metrics"
)

// DefaultCapacity is used when WithCapacity is not given.
const DefaultCapacity = 10000

// Queue is a bounded FIFO of snapshots with non-blocking enqueue.
type Queue interface {
	// Enqueue adds s or returns ErrFull / ErrClosed without blocking.
	Enqueue(ctx context.Context, s model.Snapshot) error

	// Dequeue returns the channel consumers read from. It is closed once the
	// queue is closed and drained.
	Dequeue() <-chan model.Snapshot

	Len() int
	Cap() int
	Close() error
}

// InMemoryQueue implements Queue over a buffered channel.
type InMemoryQueue struct {
	mu       sync.RWMutex
	items    chan model.Snapshot
	capacity int
	closed   bool
}

// NewInMemoryQueue creates a queue holding up to DefaultCapacity snapshots.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan model.Snapshot, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.observe()
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, s model.Snapshot) error { //nolint:gocritic // snapshots travel by value
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
	case q.items <- s:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "full")
		return ErrFull
	}
}

func (q *InMemoryQueue) Dequeue() <-chan model.Snapshot {
	return q.items
}

func (q *InMemoryQueue) Len() int {
	q.observe()
	return len(q.items)
}

func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting snapshots. Buffered snapshots remain readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.items)
	}
	return nil
}

func (q *InMemoryQueue) observe() {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
