// Package vote models a single countable vote aggregate.
//
// An Aggregate is built fresh from a snapshot document on every aggregation
// pass and never mutated afterwards. Parsing never fails on bad counts: values
// that are negative or not numeric are clamped to 0 and reported as Issues so
// callers can log them.
package vote

import (
	"math"
	"sort"
)

// Default keys under which snapshot documents carry an independently tracked total.
const (
	KeyTotalVotes     = "totalVotes"
	KeyMOTMTotalVotes = "motmTotalVotes"
	KeyTotal          = "total"
)

// DefaultTotalKeys lists the keys recognised as totals when none are given.
var DefaultTotalKeys = []string{KeyTotalVotes, KeyMOTMTotalVotes, KeyTotal}

// Aggregate maps option keys to non-negative vote counts plus a total.
type Aggregate struct {
	keys     []string
	counts   map[string]int
	total    int
	hasTotal bool
}

// Issue describes a value that was clamped or coerced while parsing.
type Issue struct {
	Key    string
	Raw    any
	Reason string
}

// Issue reasons.
const (
	ReasonNegative   = "negative count clamped to 0"
	ReasonNotNumeric = "non-numeric count coerced to 0"
)

// New builds an Aggregate from ordered keys and their counts. Keys missing from
// counts get 0; duplicate keys keep their first position. Negative counts and a
// negative total are clamped to 0.
func New(keys []string, counts map[string]int, total int, hasTotal bool) Aggregate {
	a := Aggregate{
		keys:     make([]string, 0, len(keys)),
		counts:   make(map[string]int, len(keys)),
		total:    max(total, 0),
		hasTotal: hasTotal,
	}
	for _, k := range keys {
		if _, dup := a.counts[k]; dup {
			continue
		}
		a.keys = append(a.keys, k)
		a.counts[k] = max(counts[k], 0)
	}
	return a
}

// FromCounts builds an Aggregate without an explicit total. Keys are sorted
// ascending since map iteration order is undefined.
func FromCounts(counts map[string]int) Aggregate {
	return New(sortedKeys(counts), counts, 0, false)
}

// WithTotal returns a copy of a carrying an explicit total.
func (a Aggregate) WithTotal(total int) Aggregate {
	return New(a.keys, a.counts, total, true)
}

// Keys returns the option keys in their stable order.
func (a Aggregate) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Count returns the count for key, 0 when absent.
func (a Aggregate) Count(key string) int { return a.counts[key] }

// Total returns the explicit total, 0 when none was supplied.
func (a Aggregate) Total() int { return a.total }

// HasTotal reports whether an explicit total was supplied.
func (a Aggregate) HasTotal() bool { return a.hasTotal }

// Len returns the number of options.
func (a Aggregate) Len() int { return len(a.keys) }

// IsEmpty reports whether the aggregate has no options.
func (a Aggregate) IsEmpty() bool { return len(a.keys) == 0 }

// Sum returns the sum of all option counts.
func (a Aggregate) Sum() int {
	sum := 0
	for _, k := range a.keys {
		sum += a.counts[k]
	}
	return sum
}

// Denominator is the value percentages are computed against: the explicit
// total when present, otherwise the sum of counts.
func (a Aggregate) Denominator() int {
	if a.hasTotal {
		return a.total
	}
	return a.Sum()
}

// FromMap parses a loosely typed document such as
// {"home": 12, "draw": 3, "away": 8, "totalVotes": 23}. The first present key
// from totalKeys (DefaultTotalKeys when empty) is taken as the total; every
// other entry is an option. Option keys are sorted ascending.
func FromMap(raw map[string]any, totalKeys ...string) (Aggregate, []Issue) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return build(keys, raw, totalKeys)
}

func build(keys []string, raw map[string]any, totalKeys []string) (Aggregate, []Issue) {
	if len(totalKeys) == 0 {
		totalKeys = DefaultTotalKeys
	}
	var issues []Issue

	totalKey := ""
	for _, tk := range totalKeys {
		if _, ok := raw[tk]; ok {
			totalKey = tk
			break
		}
	}

	total, hasTotal := 0, false
	if totalKey != "" {
		var issue *Issue
		total, issue = Coerce(totalKey, raw[totalKey])
		if issue != nil {
			issues = append(issues, *issue)
		}
		hasTotal = true
	}

	optionKeys := make([]string, 0, len(keys))
	counts := make(map[string]int, len(keys))
	for _, k := range keys {
		if isTotalKey(k, totalKeys) {
			continue
		}
		n, issue := Coerce(k, raw[k])
		if issue != nil {
			issues = append(issues, *issue)
		}
		optionKeys = append(optionKeys, k)
		counts[k] = n
	}
	return New(optionKeys, counts, total, hasTotal), issues
}

func isTotalKey(k string, totalKeys []string) bool {
	for _, tk := range totalKeys {
		if k == tk {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// roundCount converts a float count to int, rejecting NaN and infinities.
func roundCount(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(math.Round(f)), true
}
