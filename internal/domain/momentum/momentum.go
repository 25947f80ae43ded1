// Package momentum detects hot and cold players from rolling per-minute vote counts.
package momentum

import "sort"

// Defaults for Params.
const (
	DefaultWindowSize          = 10
	DefaultHotColdLimit        = 2
	DefaultSubRequestThreshold = 3
)

// Tally counts the votes cast about a player in one minute.
type Tally struct {
	Positive   int `json:"positive"`
	Negative   int `json:"negative"`
	SubRequest int `json:"subRequest"`
}

// Timeline is a sparse per-minute record for one player; absent minutes are zero.
type Timeline struct {
	PlayerID string        `json:"playerId"`
	ByMinute map[int]Tally `json:"byMinute"`
}

// Status is a player's momentum classification at a given minute.
type Status struct {
	PlayerID    string `json:"playerId"`
	NetMomentum int    `json:"netMomentum"`
	Positive    int    `json:"positive"`
	Negative    int    `json:"negative"`
	SubRequests int    `json:"subRequests"`
	IsHot       bool   `json:"isHot"`
	IsCold      bool   `json:"isCold"`
	WantsSubOut bool   `json:"wantsSubOut"`
}

// Params tunes ComputeStatus.
type Params struct {
	WindowSize          int
	HotColdLimit        int
	SubRequestThreshold int
}

// DefaultParams returns window 10, two hot/cold players and a sub threshold of 3.
func DefaultParams() Params {
	return Params{
		WindowSize:          DefaultWindowSize,
		HotColdLimit:        DefaultHotColdLimit,
		SubRequestThreshold: DefaultSubRequestThreshold,
	}
}

// Window returns the inclusive minute range [currentMinute-windowSize+1, currentMinute],
// with the lower bound clamped at 0.
func Window(currentMinute, windowSize int) (from, to int) {
	from = max(currentMinute-windowSize+1, 0)
	return from, currentMinute
}

// Sum totals a timeline over the inclusive range [from, to].
func (t Timeline) Sum(from, to int) Tally {
	var sum Tally
	for minute, tally := range t.ByMinute {
		if minute < from || minute > to {
			continue
		}
		sum.Positive += max(tally.Positive, 0)
		sum.Negative += max(tally.Negative, 0)
		sum.SubRequest += max(tally.SubRequest, 0)
	}
	return sum
}

// ComputeStatus classifies every player at currentMinute. Timelines are keyed
// by player id; an empty map yields an empty result.
func ComputeStatus(timelines map[string]Timeline, currentMinute int, p Params) map[string]Status {
	out := make(map[string]Status, len(timelines))
	if len(timelines) == 0 {
		return out
	}
	if p.WindowSize < 1 {
		p.WindowSize = DefaultWindowSize
	}
	from, to := Window(currentMinute, p.WindowSize)

	var hot, cold []Status
	for id, tl := range timelines {
		sum := tl.Sum(from, to)
		s := Status{
			PlayerID:    id,
			NetMomentum: sum.Positive - sum.Negative,
			Positive:    sum.Positive,
			Negative:    sum.Negative,
			SubRequests: sum.SubRequest,
			WantsSubOut: sum.SubRequest >= p.SubRequestThreshold,
		}
		switch {
		case s.NetMomentum > 0:
			hot = append(hot, s)
		case s.NetMomentum < 0:
			cold = append(cold, s)
		}
		out[id] = s
	}

	sort.Slice(hot, func(i, j int) bool {
		if hot[i].NetMomentum != hot[j].NetMomentum {
			return hot[i].NetMomentum > hot[j].NetMomentum
		}
		return hot[i].PlayerID < hot[j].PlayerID
	})
	sort.Slice(cold, func(i, j int) bool {
		if cold[i].NetMomentum != cold[j].NetMomentum {
			return cold[i].NetMomentum < cold[j].NetMomentum
		}
		return cold[i].PlayerID < cold[j].PlayerID
	})

	for i := 0; i < len(hot) && i < p.HotColdLimit; i++ {
		s := out[hot[i].PlayerID]
		s.IsHot = true
		out[s.PlayerID] = s
	}
	for i := 0; i < len(cold) && i < p.HotColdLimit; i++ {
		s := out[cold[i].PlayerID]
		s.IsCold = true
		out[s.PlayerID] = s
	}
	return out
}
