// Package substitution replays substitution events against a starting XI.
//
// Resolve is pure: identical inputs always give an identical LineupState.
// Events that reference players in an impossible state are skipped and
// reported instead of aborting the replay.
package substitution

import "sort"

// Player is a squad member.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Number   int    `json:"number,omitempty"`
	Position string `json:"position,omitempty"`
}

// Slot is a place in the active XI. Index and Grid stay with the slot when
// its player is replaced.
type Slot struct {
	Index  int    `json:"index"`
	Grid   string `json:"grid,omitempty"`
	Player Player `json:"player"`
}

// Event records one substitution.
type Event struct {
	Minute      int    `json:"minute"`
	Stoppage    int    `json:"stoppage,omitempty"`
	PlayerOffID string `json:"playerOffId"`
	PlayerOnID  string `json:"playerOnId"`
}

// SubbedOut is a player removed from the pitch, kept for display.
type SubbedOut struct {
	Player     Player `json:"player"`
	Minute     int    `json:"minute"`
	Stoppage   int    `json:"stoppage,omitempty"`
	SlotIndex  int    `json:"slotIndex"`
	ReplacedBy string `json:"replacedBy"`
}

// LineupState is the effective lineup at a point in the match.
type LineupState struct {
	ActiveXI       []Slot      `json:"activeXI"`
	BenchRemaining []Player    `json:"benchRemaining"`
	SubbedOut      []SubbedOut `json:"subbedOut"`
}

// Skip reasons.
const (
	ReasonOffNotActive  = "player off is not on the pitch"
	ReasonOnAlreadyOn   = "player on is already on the pitch"
	ReasonOnSubbedOut   = "player on was already substituted off"
	ReasonMissingPlayer = "substitution is missing a player id"
)

// SkippedEvent is an event that could not be applied.
type SkippedEvent struct {
	Event  Event  `json:"event"`
	Reason string `json:"reason"`
}

// Result carries the resolved state and what happened to each event.
type Result struct {
	State   LineupState    `json:"state"`
	Applied []Event        `json:"applied"`
	Skipped []SkippedEvent `json:"skipped"`
}

// Resolve replays events at or before upToMinute (all events when nil) in
// chronological order: minute, then stoppage, then input order.
func Resolve(startXI []Slot, substitutes []Player, events []Event, upToMinute *int) Result {
	state := LineupState{
		ActiveXI:       make([]Slot, len(startXI)),
		BenchRemaining: make([]Player, len(substitutes)),
		SubbedOut:      []SubbedOut{},
	}
	copy(state.ActiveXI, startXI)
	copy(state.BenchRemaining, substitutes)

	res := Result{Applied: []Event{}, Skipped: []SkippedEvent{}}
	for _, ev := range timeline(events, upToMinute) {
		if reason := apply(&state, ev); reason != "" {
			res.Skipped = append(res.Skipped, SkippedEvent{Event: ev, Reason: reason})
			continue
		}
		res.Applied = append(res.Applied, ev)
	}
	res.State = state
	return res
}

func timeline(events []Event, upToMinute *int) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if upToMinute != nil && ev.Minute > *upToMinute {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Minute != out[j].Minute {
			return out[i].Minute < out[j].Minute
		}
		return out[i].Stoppage < out[j].Stoppage
	})
	return out
}

// apply performs ev on state and returns a skip reason, or "" on success.
func apply(state *LineupState, ev Event) string {
	if ev.PlayerOffID == "" || ev.PlayerOnID == "" {
		return ReasonMissingPlayer
	}
	slot := activeIndex(state.ActiveXI, ev.PlayerOffID)
	if slot < 0 {
		return ReasonOffNotActive
	}
	if activeIndex(state.ActiveXI, ev.PlayerOnID) >= 0 {
		return ReasonOnAlreadyOn
	}
	for _, so := range state.SubbedOut {
		if so.Player.ID == ev.PlayerOnID {
			return ReasonOnSubbedOut
		}
	}

	incoming := Player{ID: ev.PlayerOnID}
	for i, p := range state.BenchRemaining {
		if p.ID == ev.PlayerOnID {
			incoming = p
			state.BenchRemaining = append(state.BenchRemaining[:i:i], state.BenchRemaining[i+1:]...)
			break
		}
	}

	off := state.ActiveXI[slot]
	state.SubbedOut = append(state.SubbedOut, SubbedOut{
		Player:     off.Player,
		Minute:     ev.Minute,
		Stoppage:   ev.Stoppage,
		SlotIndex:  off.Index,
		ReplacedBy: ev.PlayerOnID,
	})
	state.ActiveXI[slot].Player = incoming
	return ""
}

func activeIndex(xi []Slot, playerID string) int {
	for i, s := range xi {
		if s.Player.ID == playerID {
			return i
		}
	}
	return -1
}
