// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"time"
)

// Kind names the document a snapshot carries.
type Kind string

// Snapshot kinds, one per consensus view section.
const (
	KindLineupVotes     Kind = "lineup_votes"
	KindMOTMVotes       Kind = "motm_votes"
	KindPredictionVotes Kind = "prediction_votes"
	KindMomentum        Kind = "momentum"
	KindMood            Kind = "mood"
	KindSubstitutions   Kind = "substitutions"
)

// Kinds lists every supported snapshot kind.
var Kinds = []Kind{
	KindLineupVotes,
	KindMOTMVotes,
	KindPredictionVotes,
	KindMomentum,
	KindMood,
	KindSubstitutions,
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Snapshot is one raw document delivered by the store subscription.
// Data is kept undecoded until a worker picks the snapshot up.
type Snapshot struct {
	ID         string          // unique id for idempotency
	MatchID    string          // match the document belongs to
	Kind       Kind            // which section the document feeds
	Data       json.RawMessage // raw document body
	ReceivedAt time.Time       // when the service accepted it
}
