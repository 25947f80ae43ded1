// Package ranking turns vote aggregates into ranked, percentage-labelled results.
//
// Ordering: count DESC, then key ASC. Ranks are assigned 1..N after sorting,
// so equal counts still get distinct ranks.
package ranking

import (
	"math"
	"sort"

	"github.com/elevenvotes/consensus/internal/domain/vote"
)

const maxPercentage = 100

// RankedOption is one ranked entry of an aggregate.
type RankedOption struct {
	Key        string `json:"key"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
	Rank       int    `json:"rank"`
}

// Percentage returns round(100*count/total) clamped to [0,100], or 0 when
// total is not positive.
func Percentage(count, total int) int {
	if total <= 0 || count <= 0 {
		return 0
	}
	p := int(math.Round(float64(count) * maxPercentage / float64(total)))
	return min(p, maxPercentage)
}

// Rank orders the options of a by count. When the denominator is 0 every
// percentage is 0 and the aggregate's key order is kept.
func Rank(a vote.Aggregate) []RankedOption {
	if a.IsEmpty() {
		return []RankedOption{}
	}
	total := a.Denominator()
	keys := a.Keys()
	out := make([]RankedOption, len(keys))
	for i, k := range keys {
		c := a.Count(k)
		out[i] = RankedOption{Key: k, Count: c, Percentage: Percentage(c, total)}
	}
	if total > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Count != out[j].Count {
				return out[i].Count > out[j].Count
			}
			return out[i].Key < out[j].Key
		})
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Top returns the rank-1 option, if any.
func Top(a vote.Aggregate) (RankedOption, bool) {
	ranked := Rank(a)
	if len(ranked) == 0 {
		return RankedOption{}, false
	}
	return ranked[0], true
}
