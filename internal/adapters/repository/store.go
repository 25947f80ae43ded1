// Package repository stores the latest computed view of every match.
package repository

import (
	"context"
	"time"

	"github.com/elevenvotes/consensus/internal/domain/types"
)

// Store provides read/write access to match views.
type Store interface {
	// PutSection replaces one section of a match view and returns the updated
	// view. A section computed from a snapshot received before the stored one
	// is rejected with ErrStale.
	PutSection(ctx context.Context, matchID string, s types.Section, at time.Time) (types.MatchView, error)

	// Get returns the view of a match or ErrNotFound.
	Get(ctx context.Context, matchID string) (types.MatchView, error)

	// Count returns the number of matches with at least one section.
	Count(ctx context.Context) int
}
