// Package sentiment scores per-minute emoji mood votes on a 0-100 scale.
package sentiment

import (
	"math"
	"sort"
)

// Mood is one of the five canonical emoji moods.
type Mood string

// Canonical moods.
const (
	Excited Mood = "excited"
	Happy   Mood = "happy"
	Nervous Mood = "nervous"
	Sad     Mood = "sad"
	Angry   Mood = "angry"
)

// Neutral is the sentiment reported when nobody voted.
const Neutral = 50

// Moods lists the canonical moods from most to least positive.
var Moods = []Mood{Excited, Happy, Nervous, Sad, Angry}

// Weight returns the fixed weight of a mood and whether it is canonical.
func Weight(m Mood) (int, bool) {
	switch m {
	case Excited:
		return 100, true
	case Happy:
		return 75, true
	case Nervous:
		return 50, true
	case Sad:
		return 25, true
	case Angry:
		return 0, true
	default:
		return 0, false
	}
}

// Bucket holds the mood votes cast in one minute.
type Bucket struct {
	Minute int          `json:"minute"`
	Counts map[Mood]int `json:"counts"`
}

// Result is the scored form of a Bucket.
type Result struct {
	Minute     int    `json:"minute"`
	Sentiment  int    `json:"sentiment"`
	TotalVotes int    `json:"totalVotes"`
	Label      string `json:"label"`
}

// Score computes round(sum(count*weight)/totalVotes), or Neutral when no
// votes were cast. Unknown moods are ignored and negative counts count as 0.
func Score(b Bucket) Result {
	weighted, total := 0, 0
	for _, m := range Moods {
		n := max(b.Counts[m], 0)
		w, _ := Weight(m)
		weighted += n * w
		total += n
	}
	s := Neutral
	if total > 0 {
		s = int(math.Round(float64(weighted) / float64(total)))
	}
	return Result{Minute: b.Minute, Sentiment: s, TotalVotes: total, Label: Label(s)}
}

// ScoreSeries scores every bucket and orders the results by minute.
func ScoreSeries(buckets []Bucket) []Result {
	out := make([]Result, len(buckets))
	for i, b := range buckets {
		out[i] = Score(b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Minute < out[j].Minute })
	return out
}
