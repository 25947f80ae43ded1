package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/internal/domain/types"
	"github.com/elevenvotes/consensus/pkg/metrics"
)

type record struct {
	view      types.MatchView
	sectionAt map[model.Kind]time.Time
}

// MemoryStore keeps match views in a map guarded by a RWMutex. Sections are
// replaced wholesale and never mutated, so returned views share them safely.
type MemoryStore struct {
	mu       sync.RWMutex
	matches  map[string]*record
	revision int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{matches: make(map[string]*record)}
}

func (m *MemoryStore) PutSection(_ context.Context, matchID string, s types.Section, at time.Time) (types.MatchView, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency("put", float64(time.Since(start).Microseconds())/1000)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.matches[matchID]
	if !ok {
		rec = &record{
			view:      types.MatchView{MatchID: matchID},
			sectionAt: make(map[model.Kind]time.Time),
		}
	}
	if prev, seen := rec.sectionAt[s.Kind]; seen && at.Before(prev) {
		return rec.view, fmt.Errorf("%w: %s/%s", ErrStale, matchID, s.Kind)
	}

	next := rec.view
	if !next.Apply(s, at) {
		return types.MatchView{}, fmt.Errorf("%w: %s", ErrInvalidSection, s.Kind)
	}
	next.Revision = m.nextRevision()
	rec.view = next
	rec.sectionAt[s.Kind] = at
	if !ok {
		m.matches[matchID] = rec
		metrics.UpdateMatchesTotal(len(m.matches))
	}
	return next, nil
}

// nextRevision returns a revision above every earlier one. It tracks the wall
// clock in microseconds so revisions keep growing across restarts. Callers
// hold m.mu.
func (m *MemoryStore) nextRevision() int64 {
	m.revision = max(m.revision+1, time.Now().UnixMicro())
	return m.revision
}

func (m *MemoryStore) Get(_ context.Context, matchID string) (types.MatchView, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency("get", float64(time.Since(start).Microseconds())/1000)
	}()

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.matches[matchID]
	if !ok {
		return types.MatchView{}, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	return rec.view, nil
}

func (m *MemoryStore) Count(context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matches)
}
