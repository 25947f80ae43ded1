// Package lineup builds the community starting XI from formation and per-slot votes.
package lineup

import (
	"github.com/elevenvotes/consensus/internal/domain/ranking"
	"github.com/elevenvotes/consensus/internal/domain/vote"
)

// SlotCount is the number of canonical slots; slot 1 is the goalkeeper.
const SlotCount = 11

// DefaultFormation is used when nobody has voted on a formation yet.
const DefaultFormation = "4-3-3"

// FormationSlot is the consensus pick for one slot.
type FormationSlot struct {
	SlotID               int     `json:"slotId"`
	WinningPlayerID      *string `json:"winningPlayerId"`
	ConfidencePercentage int     `json:"confidencePercentage"`
}

// Consensus is the Community XI.
type Consensus struct {
	WinningFormation    string                   `json:"winningFormation"`
	FormationConfidence int                      `json:"formationConfidence"`
	Slots               [SlotCount]FormationSlot `json:"slots"`
}

type builder struct {
	fallback string
}

// Option configures Build.
type Option func(*builder)

// WithFallbackFormation overrides DefaultFormation.
func WithFallbackFormation(formation string) Option {
	return func(b *builder) {
		if formation != "" {
			b.fallback = formation
		}
	}
}

// Build picks the winning formation and the winning player of every slot.
// Formation and slots are ranked independently; callers reconcile slot ids
// with the formation's Layout when rendering. Like a slot, the formation needs
// at least one vote to win; otherwise the fallback is reported.
func Build(formationVotes vote.Aggregate, perSlot map[int]vote.Aggregate, opts ...Option) Consensus {
	b := builder{fallback: DefaultFormation}
	for _, opt := range opts {
		opt(&b)
	}

	c := Consensus{WinningFormation: b.fallback}
	if top, ok := ranking.Top(formationVotes); ok && top.Count > 0 {
		c.WinningFormation = top.Key
		c.FormationConfidence = top.Percentage
	}

	for i := range c.Slots {
		slotID := i + 1
		c.Slots[i] = FormationSlot{SlotID: slotID}
		agg, ok := perSlot[slotID]
		if !ok {
			continue
		}
		top, ok := ranking.Top(agg)
		if !ok || top.Count == 0 {
			continue
		}
		player := top.Key
		c.Slots[i].WinningPlayerID = &player
		c.Slots[i].ConfidencePercentage = top.Percentage
	}
	return c
}
