// Package types contains the read shapes served to the presentation layer.
package types

import (
	"time"

	"github.com/elevenvotes/consensus/internal/domain/lineup"
	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/internal/domain/momentum"
	"github.com/elevenvotes/consensus/internal/domain/ranking"
	"github.com/elevenvotes/consensus/internal/domain/sentiment"
	"github.com/elevenvotes/consensus/internal/domain/substitution"
)

// LineupSection is the Community XI plus the winning formation's layout.
type LineupSection struct {
	lineup.Consensus
	Layout []lineup.Position `json:"layout,omitempty"`
}

// MOTMSection is the man-of-the-match breakdown.
type MOTMSection struct {
	Breakdown  []ranking.RankedOption `json:"breakdown"`
	TotalVotes int                    `json:"totalVotes"`
}

// MomentumSection lists every player's status ordered by player id.
type MomentumSection struct {
	CurrentMinute int               `json:"currentMinute"`
	WindowSize    int               `json:"windowSize"`
	Players       []momentum.Status `json:"players"`
	Summary       momentum.Summary  `json:"summary"`
}

// MoodSection is the per-minute sentiment series.
type MoodSection struct {
	Series []sentiment.Result `json:"series"`
	Latest *sentiment.Result  `json:"latest,omitempty"`
}

// SubstitutionSection is the effective lineup after replaying substitutions.
type SubstitutionSection struct {
	UpToMinute *int                        `json:"upToMinute,omitempty"`
	State      substitution.LineupState    `json:"state"`
	Applied    []substitution.Event        `json:"applied"`
	Skipped    []substitution.SkippedEvent `json:"skipped"`
}

// Section is one computed part of a match view.
type Section struct {
	Kind model.Kind `json:"kind"`
	Data any        `json:"data"`
}

// SectionUpdate is pushed to live subscribers when a section changes.
type SectionUpdate struct {
	MatchID   string     `json:"matchId"`
	Kind      model.Kind `json:"kind"`
	Data      any        `json:"data"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// MatchView aggregates every section computed for a match so far.
type MatchView struct {
	MatchID string `json:"matchId"`
	// Revision increases with every stored section.
	Revision   int64                `json:"revision"`
	UpdatedAt  time.Time            `json:"updatedAt"`
	Lineup     *LineupSection       `json:"lineup,omitempty"`
	MOTM       *MOTMSection         `json:"motm,omitempty"`
	Prediction *ranking.Prediction  `json:"prediction,omitempty"`
	Momentum   *MomentumSection     `json:"momentum,omitempty"`
	Mood       *MoodSection         `json:"mood,omitempty"`
	Lineups    *SubstitutionSection `json:"lineups,omitempty"`
}

// Apply stores s in the matching field. It reports false when the section's
// data does not match its kind.
func (v *MatchView) Apply(s Section, at time.Time) bool {
	switch d := s.Data.(type) {
	case LineupSection:
		if s.Kind != model.KindLineupVotes {
			return false
		}
		v.Lineup = &d
	case MOTMSection:
		if s.Kind != model.KindMOTMVotes {
			return false
		}
		v.MOTM = &d
	case ranking.Prediction:
		if s.Kind != model.KindPredictionVotes {
			return false
		}
		v.Prediction = &d
	case MomentumSection:
		if s.Kind != model.KindMomentum {
			return false
		}
		v.Momentum = &d
	case MoodSection:
		if s.Kind != model.KindMood {
			return false
		}
		v.Mood = &d
	case SubstitutionSection:
		if s.Kind != model.KindSubstitutions {
			return false
		}
		v.Lineups = &d
	default:
		return false
	}
	if at.After(v.UpdatedAt) {
		v.UpdatedAt = at
	}
	return true
}

// Section returns the stored data for kind, if computed yet.
func (v *MatchView) Section(kind model.Kind) (any, bool) {
	switch kind {
	case model.KindLineupVotes:
		return v.Lineup, v.Lineup != nil
	case model.KindMOTMVotes:
		return v.MOTM, v.MOTM != nil
	case model.KindPredictionVotes:
		return v.Prediction, v.Prediction != nil
	case model.KindMomentum:
		return v.Momentum, v.Momentum != nil
	case model.KindMood:
		return v.Mood, v.Mood != nil
	case model.KindSubstitutions:
		return v.Lineups, v.Lineups != nil
	default:
		return nil, false
	}
}
