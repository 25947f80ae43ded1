package matchsim

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
)

// Snapshot kinds on the wire.
const (
	KindLineupVotes     = "lineup_votes"
	KindMOTMVotes       = "motm_votes"
	KindPredictionVotes = "prediction_votes"
	KindMomentum        = "momentum"
	KindMood            = "mood"
	KindSubstitutions   = "substitutions"
)

var (
	formations        = []string{"4-3-3", "4-4-2", "3-5-2", "4-2-3-1"}
	formationWeights  = []int{5, 3, 1, 1}
	outcomes          = []string{"home", "draw", "away"}
	outcomeWeights    = []int{45, 25, 30}
	moods             = []string{"excited", "happy", "nervous", "sad", "angry"}
	startingPositions = []string{"GK", "RB", "CB", "CB", "LB", "CM", "CM", "CM", "RW", "ST", "LW"}
)

type player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Position string `json:"position,omitempty"`
}

type slot struct {
	Index  int    `json:"index"`
	Player player `json:"player"`
}

type substitutionEvent struct {
	Minute      int    `json:"minute"`
	PlayerOffID string `json:"playerOffId"`
	PlayerOnID  string `json:"playerOnId"`
}

type tally struct {
	Positive   int `json:"positive"`
	Negative   int `json:"negative"`
	SubRequest int `json:"subRequest"`
}

// match is the simulated vote state. Every count is cumulative, so the
// snapshot emitted for a minute supersedes all earlier ones of its kind.
type match struct {
	rng     *rand.Rand
	id      string
	voters  int
	minute  int
	startXI []slot
	bench   []player
	events  []substitutionEvent

	formationVotes map[string]int
	slotVotes      []map[string]int
	motm           map[string]int
	prediction     map[string]int
	momentum       map[string]map[string]tally
	mood           map[string]map[string]int
}

func newMatch(id string, voters int, seed uint64) *match {
	m := &match{
		rng:            rand.New(rand.NewPCG(seed, seed^0x5eed)),
		id:             id,
		voters:         voters,
		formationVotes: map[string]int{},
		motm:           map[string]int{},
		prediction:     map[string]int{},
		momentum:       map[string]map[string]tally{},
		mood:           map[string]map[string]int{},
	}
	for i, pos := range startingPositions {
		p := player{ID: "p" + strconv.Itoa(i+1), Name: fmt.Sprintf("Player %d", i+1), Number: i + 1, Position: pos}
		m.startXI = append(m.startXI, slot{Index: i + 1, Player: p})
		m.slotVotes = append(m.slotVotes, map[string]int{})
	}
	for i := 12; i <= 18; i++ {
		m.bench = append(m.bench, player{ID: "p" + strconv.Itoa(i), Name: fmt.Sprintf("Player %d", i), Number: i})
	}
	// The last event replaces a player who already left and is skipped by the service.
	m.events = []substitutionEvent{
		{Minute: 60, PlayerOffID: "p9", PlayerOnID: "p12"},
		{Minute: 70, PlayerOffID: "p7", PlayerOnID: "p13"},
		{Minute: 80, PlayerOffID: "p11", PlayerOnID: "p14"},
		{Minute: 85, PlayerOffID: "p9", PlayerOnID: "p15"},
	}
	return m
}

// weighted picks an index of weights proportionally to its weight.
func (m *match) weighted(weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	n := m.rng.IntN(total)
	for i, w := range weights {
		if n < w {
			return i
		}
		n -= w
	}
	return len(weights) - 1
}

// active returns the ids on the pitch at the current minute.
func (m *match) active() []string {
	ids := make([]string, len(m.startXI))
	for i, s := range m.startXI {
		ids[i] = s.Player.ID
	}
	for _, ev := range m.events {
		if ev.Minute > m.minute {
			break
		}
		for i, id := range ids {
			if id == ev.PlayerOffID {
				ids[i] = ev.PlayerOnID
			}
		}
	}
	return ids
}

// advance simulates one minute of voting.
func (m *match) advance() {
	m.minute++
	batch := max(m.voters/10, 1)

	for range batch {
		m.formationVotes[formations[m.weighted(formationWeights)]]++
	}
	for i, s := range m.startXI {
		for range batch {
			pick := s.Player.ID
			if m.rng.IntN(5) == 0 {
				pick = m.bench[i%len(m.bench)].ID
			}
			m.slotVotes[i][pick]++
		}
	}

	active := m.active()
	for range max(m.voters/5, 1) {
		// min of two draws skews votes towards the first players.
		m.motm[active[min(m.rng.IntN(len(active)), m.rng.IntN(len(active)))]]++
		m.prediction[outcomes[m.weighted(outcomeWeights)]]++
	}

	minute := strconv.Itoa(m.minute)
	for _, id := range active {
		if m.rng.IntN(10) >= 3 {
			continue
		}
		if m.momentum[id] == nil {
			m.momentum[id] = map[string]tally{}
		}
		m.momentum[id][minute] = tally{
			Positive:   m.rng.IntN(4),
			Negative:   m.rng.IntN(4),
			SubRequest: m.rng.IntN(2),
		}
	}

	bucket := map[string]int{}
	bias := m.rng.IntN(len(moods))
	for range max(m.voters/4, 1) {
		i := m.rng.IntN(len(moods))
		if m.rng.IntN(2) == 0 {
			i = bias
		}
		bucket[moods[i]]++
	}
	m.mood[minute] = bucket
}

// snapshots renders the current state as one snapshot per kind.
func (m *match) snapshots() ([]Snapshot, error) {
	slots := make(map[string]map[string]int, len(m.slotVotes))
	for i, votes := range m.slotVotes {
		slots[strconv.Itoa(i+1)] = votes
	}
	motmTotal := 0
	for _, n := range m.motm {
		motmTotal += n
	}
	predictionTotal := m.prediction["home"] + m.prediction["draw"] + m.prediction["away"]

	docs := []struct {
		kind string
		data any
	}{
		{KindLineupVotes, map[string]any{"formationVotes": m.formationVotes, "slots": slots}},
		{KindMOTMVotes, map[string]any{"playerVotes": m.motm, "motmTotalVotes": motmTotal}},
		{KindPredictionVotes, map[string]any{
			"home": m.prediction["home"], "draw": m.prediction["draw"], "away": m.prediction["away"],
			"totalVotes": predictionTotal,
		}},
		{KindMomentum, map[string]any{"currentMinute": m.minute, "windowSize": windowSize, "players": m.momentum}},
		{KindMood, map[string]any{"buckets": m.mood}},
		{KindSubstitutions, map[string]any{
			"startXI": m.startXI, "substitutes": m.bench, "events": m.events, "upToMinute": m.minute,
		}},
	}

	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		data, err := json.Marshal(d.data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", d.kind, err)
		}
		out = append(out, Snapshot{ID: uuid.NewString(), MatchID: m.id, Kind: d.kind, Data: data})
	}
	return out, nil
}

// Generate simulates a match minute by minute. It returns every snapshot in
// emission order and, separately, the last snapshot of each kind.
func Generate(matchID string, minutes, voters int, seed uint64) (all, final []Snapshot, err error) {
	m := newMatch(matchID, voters, seed)
	for range minutes {
		m.advance()
		batch, err := m.snapshots()
		if err != nil {
			return nil, nil, err
		}
		all = append(all, batch...)
		final = batch
	}
	return all, final, nil
}
