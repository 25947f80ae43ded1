package ranking

import "github.com/elevenvotes/consensus/internal/domain/vote"

// Prediction outcome keys.
const (
	OutcomeHome = "home"
	OutcomeDraw = "draw"
	OutcomeAway = "away"
)

// Prediction is the community's match-winner breakdown.
type Prediction struct {
	Home       int    `json:"home"`
	Draw       int    `json:"draw"`
	Away       int    `json:"away"`
	Favourite  string `json:"favourite,omitempty"`
	TotalVotes int    `json:"totalVotes"`
}

// MOTMBreakdown ranks man-of-the-match votes and returns the denominator the
// percentages were computed against. A tracked total is authoritative, even
// when it is 0; a nil totalVotes falls back to the aggregate's own denominator.
func MOTMBreakdown(playerVotes vote.Aggregate, totalVotes *int) ([]RankedOption, int) {
	if totalVotes != nil {
		playerVotes = playerVotes.WithTotal(*totalVotes)
	}
	return Rank(playerVotes), playerVotes.Denominator()
}

// PredictionBreakdown reports home/draw/away percentages of a and the
// favourite outcome. Favourite is empty when no votes were cast.
func PredictionBreakdown(a vote.Aggregate) Prediction {
	total := a.Denominator()
	p := Prediction{
		Home:       Percentage(a.Count(OutcomeHome), total),
		Draw:       Percentage(a.Count(OutcomeDraw), total),
		Away:       Percentage(a.Count(OutcomeAway), total),
		TotalVotes: total,
	}
	if total == 0 {
		return p
	}
	outcomes := vote.New(
		[]string{OutcomeHome, OutcomeDraw, OutcomeAway},
		map[string]int{
			OutcomeHome: a.Count(OutcomeHome),
			OutcomeDraw: a.Count(OutcomeDraw),
			OutcomeAway: a.Count(OutcomeAway),
		},
		total, true,
	)
	if top, ok := Top(outcomes); ok && top.Count > 0 {
		p.Favourite = top.Key
	}
	return p
}
