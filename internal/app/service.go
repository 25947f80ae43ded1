// Package service wires the aggregation engine to the snapshot pipeline and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/elevenvotes/consensus/internal/adapters/mq/queue"
	workerpool "github.com/elevenvotes/consensus/internal/adapters/mq/worker"
	"github.com/elevenvotes/consensus/internal/adapters/repository"
	"github.com/elevenvotes/consensus/internal/domain/dedupe"
	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/internal/domain/types"
	"github.com/elevenvotes/consensus/pkg/logger"
	"github.com/elevenvotes/consensus/pkg/metrics"
)

// Broadcaster receives every section written to the store.
type Broadcaster interface {
	Broadcast(u types.SectionUpdate)
}

// Service owns the snapshot pipeline: deduper, queue, workers and store.
type Service struct {
	mu sync.RWMutex

	// Core components
	views       repository.Store
	deduper     dedupe.Deduper
	queue       eventqueue.Queue
	pool        *workerpool.Pool
	engine      *Engine
	broadcaster Broadcaster

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	redisAddr   string
	redisTTL    time.Duration

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the snapshot queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many snapshot ids are remembered. 0 remembers
// every id; negative values keep the default.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEngine replaces the default aggregation engine.
func WithEngine(e *Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithStore replaces the default in-memory view store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.views = store
		}
	}
}

// WithRedis caches match views in Redis at addr for ttl.
func WithRedis(addr string, ttl time.Duration) Option {
	return func(s *Service) {
		s.redisAddr = addr
		s.redisTTL = ttl
	}
}

// WithBroadcaster publishes every stored section to b.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) {
		if b != nil {
			s.broadcaster = b
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   eventqueue.DefaultCapacity,
		dedupeSize:  dedupe.DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.engine == nil {
		s.engine = NewEngine()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start creates the store, queue and worker pool. Workers stop when ctx is
// cancelled or after Stop drains the queue.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting consensus service...")

	if s.views == nil {
		s.views = repository.NewMemoryStore()
	}
	if s.redisAddr != "" {
		rdb, err := repository.NewRedisClient(s.redisAddr)
		if err != nil {
			return fmt.Errorf("start service: %w", err)
		}
		s.views = repository.NewCachedStore(s.views, rdb, s.redisTTL)
		s.logger.Info(ctx, "caching views in redis", logger.String("addr", s.redisAddr))
	}

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.ProcessorFunc(s.Process),
		workerpool.WithName("aggregator"),
		workerpool.WithLogger(s.logger),
	)
	s.pool.Start(ctx)
	metrics.UpdateWorkerCount(s.pool.Size())

	s.started = true
	p := s.engine.Params()
	s.logger.Info(ctx, "consensus service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("momentumWindow", p.WindowSize),
	)
	return nil
}

// Stop closes the queue, waits for the workers to drain it and releases the
// store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	pool, views := s.pool, s.views
	s.mu.Unlock()

	// Workers read the store while draining, so the lock is not held here.
	s.logger.Info(ctx, "stopping consensus service...")
	var errs []error
	if err := pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if closer, ok := views.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	s.logger.Info(ctx, "consensus service stopped",
		logger.Int64("processed", pool.Processed()),
		logger.Int64("failed", pool.Failed()),
	)
	return errors.Join(errs...)
}

// SeenAndRecord reports whether the snapshot id was already accepted and
// records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord forgets a snapshot id so the sender can retry it.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the number of remembered snapshot ids.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// Enqueue hands a snapshot to the workers without blocking. It returns
// eventqueue.ErrFull or eventqueue.ErrClosed wrapped.
func (s *Service) Enqueue(ctx context.Context, snap model.Snapshot) error { //nolint:gocritic // snapshots travel by value
	s.mu.RLock()
	q := s.queue
	s.mu.RUnlock()
	if q == nil {
		return ErrNotStarted
	}
	if snap.ReceivedAt.IsZero() {
		snap.ReceivedAt = time.Now()
	}
	if err := q.Enqueue(ctx, snap); err != nil {
		return fmt.Errorf("enqueue snapshot %s: %w", snap.ID, err)
	}
	s.logger.Debug(ctx, "snapshot enqueued",
		logger.String("snapshotID", snap.ID),
		logger.String("matchID", snap.MatchID),
		logger.String("kind", string(snap.Kind)),
	)
	return nil
}

// Process aggregates one snapshot, stores the resulting section and
// broadcasts it. Older snapshots than the stored section are ignored.
func (s *Service) Process(ctx context.Context, snap model.Snapshot) error { //nolint:gocritic // snapshots travel by value
	kind := string(snap.Kind)
	start := time.Now()
	sec, diags, err := s.engine.Compute(ctx, snap)
	metrics.RecordAggregationLatency(kind, float64(time.Since(start).Microseconds())/1000)
	s.report(ctx, snap, diags)
	if err != nil {
		metrics.RecordAggregationError(kind)
		return fmt.Errorf("aggregate %s snapshot %s: %w", kind, snap.ID, err)
	}

	views := s.store()
	if views == nil {
		return ErrNotStarted
	}
	if _, err := views.PutSection(ctx, snap.MatchID, sec, snap.ReceivedAt); err != nil {
		if errors.Is(err, repository.ErrStale) {
			s.logger.Debug(ctx, "stale snapshot ignored",
				logger.String("snapshotID", snap.ID),
				logger.String("matchID", snap.MatchID),
				logger.String("kind", kind),
			)
			return nil
		}
		return fmt.Errorf("store %s section for %s: %w", kind, snap.MatchID, err)
	}
	metrics.RecordSnapshotProcessed(kind)
	metrics.RecordViewUpdate(kind)
	metrics.UpdateMatchesTotal(views.Count(ctx))

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(types.SectionUpdate{
			MatchID:   snap.MatchID,
			Kind:      snap.Kind,
			Data:      sec.Data,
			UpdatedAt: snap.ReceivedAt,
		})
	}
	return nil
}

// report logs what the engine repaired or skipped.
func (s *Service) report(ctx context.Context, snap model.Snapshot, diags Diagnostics) { //nolint:gocritic // snapshots travel by value
	if diags.Empty() {
		return
	}
	kind := string(snap.Kind)
	for _, d := range diags.Decode {
		s.logger.Debug(ctx, "snapshot value repaired",
			logger.String("snapshotID", snap.ID),
			logger.String("matchID", snap.MatchID),
			logger.String("kind", kind),
			logger.String("field", d.Field),
			logger.String("key", d.Key),
			logger.Any("raw", d.Raw),
			logger.String("reason", d.Reason),
		)
	}
	metrics.RecordValuesRepaired(kind, len(diags.Decode))

	for _, sk := range diags.Skipped {
		s.logger.Debug(ctx, "substitution skipped",
			logger.String("matchID", snap.MatchID),
			logger.Int("minute", sk.Event.Minute),
			logger.String("playerOffId", sk.Event.PlayerOffID),
			logger.String("playerOnId", sk.Event.PlayerOnID),
			logger.String("reason", sk.Reason),
		)
	}
	metrics.RecordSubstitutionsSkipped(len(diags.Skipped))
}

// View returns the current consensus view of a match.
func (s *Service) View(ctx context.Context, matchID string) (types.MatchView, error) {
	views := s.store()
	if views == nil {
		return types.MatchView{}, ErrNotStarted
	}
	return views.Get(ctx, matchID)
}

func (s *Service) store() repository.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.views
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"dedupeEntries": s.deduper.Size(),
	}

	if s.started {
		queueLen := s.queue.Len()
		matches := s.views.Count(ctx)

		stats["queueLength"] = queueLen
		stats["matches"] = matches
		stats["processed"] = s.pool.Processed()
		stats["failed"] = s.pool.Failed()
		if c, ok := s.broadcaster.(interface{ Clients() int }); ok {
			stats["liveClients"] = c.Clients()
		}

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateMatchesTotal(matches)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}
