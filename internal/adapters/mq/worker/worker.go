// Package worker runs the goroutines that turn queued snapshots into view updates.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/pkg/logger"
	"github.com/elevenvotes/consensus/pkg/metrics"
)

const defaultShutdownTimeout = 30 * time.Second

// Processor handles one snapshot.
type Processor interface {
	Process(ctx context.Context, s model.Snapshot) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, s model.Snapshot) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, s model.Snapshot) error { //nolint:gocritic // snapshots travel by value
	return f(ctx, s)
}

// Source is where workers read snapshots from.
type Source interface {
	Dequeue() <-chan model.Snapshot
}

// Pool runs a fixed number of workers over a Source.
type Pool struct {
	size            int
	source          Source
	processor       Processor
	name            string
	shutdownTimeout time.Duration
	logger          logger.Logger

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool creates a pool of size workers; size < 1 means one per CPU.
func NewPool(size int, source Source, processor Processor, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		size:            size,
		source:          source,
		processor:       processor,
		name:            "worker",
		shutdownTimeout: defaultShutdownTimeout,
		logger:          logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	metrics.UpdateWorkerCount(size)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Start launches the workers. Workers exit when the source channel closes or
// ctx is cancelled. Calling Start twice has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.run(ctx, p.logger.Named(p.name+"-"+strconv.Itoa(i)))
		}
	})
}

func (p *Pool) run(ctx context.Context, log logger.Logger) {
	defer p.wg.Done()

	items := p.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-items:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := p.handle(ctx, s); err != nil {
				log.Error(ctx, "snapshot processing failed",
					logger.String("snapshotID", s.ID),
					logger.String("matchID", s.MatchID),
					logger.String("kind", string(s.Kind)),
					logger.Error(err),
				)
			}
		}
	}
}

func (p *Pool) handle(ctx context.Context, s model.Snapshot) (err error) { //nolint:gocritic // snapshots travel by value
	metrics.UpdateWorkerActiveCount(int(p.active.Add(1)))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
		metrics.UpdateWorkerActiveCount(int(p.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
		if err != nil {
			p.failed.Add(1)
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "process")
			return
		}
		p.processed.Add(1)
	}()
	return p.processor.Process(ctx, s)
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Processed returns how many snapshots were handled without error.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns how many snapshots returned an error.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Shutdown closes the source when it can be closed and waits for the workers
// to drain it, up to the configured timeout or ctx's deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(ctx, p.shutdownTimeout)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("workers", p.size))
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}
