package codec

import (
	"encoding/json"
	"fmt"

	"github.com/elevenvotes/consensus/internal/domain/lineup"
	"github.com/elevenvotes/consensus/internal/domain/momentum"
	"github.com/elevenvotes/consensus/internal/domain/sentiment"
	"github.com/elevenvotes/consensus/internal/domain/substitution"
	"github.com/elevenvotes/consensus/internal/domain/vote"
)

// LineupVotes is the decoded lineup_votes document.
type LineupVotes struct {
	Formation vote.Aggregate
	Slots     map[int]vote.Aggregate
}

// DecodeLineupVotes decodes {"formationVotes": {...}, "slots": {"1": {...}, ...}}.
func DecodeLineupVotes(data []byte) (LineupVotes, []Diagnostic, error) {
	top, err := fields("lineup_votes", data)
	if err != nil {
		return LineupVotes{}, nil, err
	}

	out := LineupVotes{Slots: make(map[int]vote.Aggregate)}
	var diags []Diagnostic
	out.Formation, diags = aggregateField("formationVotes", top["formationVotes"], diags)

	slots, ok := asObject(top["slots"])
	if !ok {
		return out, append(diags, Diagnostic{Field: "slots", Raw: rawValue(top["slots"]), Reason: ReasonNotObject}), nil
	}
	for _, key := range sortedKeys(slots) {
		slot, ok := parseMinute(key)
		if !ok || slot < 1 || slot > lineup.SlotCount {
			diags = append(diags, Diagnostic{Field: "slots", Key: key, Reason: ReasonBadSlot})
			continue
		}
		agg, slotDiags, err := parseAggregate("slots."+key, slots[key])
		if err != nil {
			diags = append(diags, Diagnostic{Field: "slots", Key: key, Raw: rawValue(slots[key]), Reason: ReasonNotObject})
			continue
		}
		diags = append(diags, slotDiags...)
		out.Slots[slot] = agg
	}
	return out, diags, nil
}

// MOTMVotes is the decoded motm_votes document. TotalVotes is nil when the
// document does not track a total.
type MOTMVotes struct {
	Players    vote.Aggregate
	TotalVotes *int
}

// DecodeMOTMVotes decodes {"playerVotes": {...}, "motmTotalVotes": n}.
func DecodeMOTMVotes(data []byte) (MOTMVotes, []Diagnostic, error) {
	top, err := fields("motm_votes", data)
	if err != nil {
		return MOTMVotes{}, nil, err
	}

	var (
		out   MOTMVotes
		diags []Diagnostic
	)
	out.Players, diags = aggregateField("playerVotes", top["playerVotes"], diags)
	if raw, ok := top[vote.KeyMOTMTotalVotes]; ok && !isNull(raw) {
		var total int
		total, diags = countField(vote.KeyMOTMTotalVotes, vote.KeyMOTMTotalVotes, top, diags)
		out.TotalVotes = &total
	}
	return out, diags, nil
}

// DecodePredictionVotes decodes {"home": n, "draw": n, "away": n, "totalVotes": n}.
func DecodePredictionVotes(data []byte) (vote.Aggregate, []Diagnostic, error) {
	a, issues, err := vote.ParseJSON(data)
	if err != nil {
		return vote.Aggregate{}, nil, fmt.Errorf("%w: prediction_votes: %w", ErrDecode, err)
	}
	return a, fromIssues("prediction", issues), nil
}

// Momentum is the decoded momentum document.
type Momentum struct {
	CurrentMinute int
	WindowSize    int // 0 when the document does not override it
	Timelines     map[string]momentum.Timeline
}

// DecodeMomentum decodes
// {"currentMinute": 90, "windowSize": 10, "players": {"id": {"85": {"positive": 1}}}}.
func DecodeMomentum(data []byte) (Momentum, []Diagnostic, error) {
	top, err := fields("momentum", data)
	if err != nil {
		return Momentum{}, nil, err
	}

	var diags []Diagnostic
	out := Momentum{Timelines: make(map[string]momentum.Timeline)}
	out.CurrentMinute, diags = countField("currentMinute", "currentMinute", top, diags)
	out.WindowSize, diags = countField("windowSize", "windowSize", top, diags)

	players, ok := asObject(top["players"])
	if !ok {
		return out, append(diags, Diagnostic{Field: "players", Raw: rawValue(top["players"]), Reason: ReasonNotObject}), nil
	}
	for _, id := range sortedKeys(players) {
		minutes, ok := asObject(players[id])
		if !ok {
			diags = append(diags, Diagnostic{Field: "players", Key: id, Raw: rawValue(players[id]), Reason: ReasonNotObject})
			continue
		}
		tl := momentum.Timeline{PlayerID: id, ByMinute: make(map[int]momentum.Tally)}
		for _, key := range sortedKeys(minutes) {
			minute, ok := parseMinute(key)
			if !ok {
				diags = append(diags, Diagnostic{Field: "players." + id, Key: key, Reason: ReasonBadMinute})
				continue
			}
			tally, ok := asObject(minutes[key])
			if !ok {
				diags = append(diags, Diagnostic{Field: "players." + id, Key: key, Raw: rawValue(minutes[key]), Reason: ReasonNotObject})
				continue
			}
			field := "players." + id + "." + key
			var t momentum.Tally
			t.Positive, diags = countField(field, "positive", tally, diags)
			t.Negative, diags = countField(field, "negative", tally, diags)
			t.SubRequest, diags = countField(field, "subRequest", tally, diags)
			tl.ByMinute[minute] = t
		}
		out.Timelines[id] = tl
	}
	return out, diags, nil
}

// DecodeMood decodes {"buckets": {"12": {"excited": 3, "angry": 1}}} into
// buckets ordered by minute. Unknown moods are kept and ignored by scoring.
func DecodeMood(data []byte) ([]sentiment.Bucket, []Diagnostic, error) {
	top, err := fields("mood", data)
	if err != nil {
		return nil, nil, err
	}

	var diags []Diagnostic
	raw, ok := asObject(top["buckets"])
	if !ok {
		return []sentiment.Bucket{}, []Diagnostic{{Field: "buckets", Raw: rawValue(top["buckets"]), Reason: ReasonNotObject}}, nil
	}
	buckets := make([]sentiment.Bucket, 0, len(raw))
	for _, key := range sortedKeys(raw) {
		minute, ok := parseMinute(key)
		if !ok {
			diags = append(diags, Diagnostic{Field: "buckets", Key: key, Reason: ReasonBadMinute})
			continue
		}
		counts, ok := asObject(raw[key])
		if !ok {
			diags = append(diags, Diagnostic{Field: "buckets", Key: key, Raw: rawValue(raw[key]), Reason: ReasonNotObject})
			continue
		}
		b := sentiment.Bucket{Minute: minute, Counts: make(map[sentiment.Mood]int, len(counts))}
		for _, mood := range sortedKeys(counts) {
			var n int
			n, diags = countField("buckets."+key, mood, counts, diags)
			b.Counts[sentiment.Mood(mood)] = n
		}
		buckets = append(buckets, b)
	}
	return buckets, diags, nil
}

// Substitutions is the decoded substitutions document.
type Substitutions struct {
	StartXI     []substitution.Slot
	Substitutes []substitution.Player
	Events      []substitution.Event
	UpToMinute  *int
}

// DecodeSubstitutions decodes
// {"startXI": [...], "substitutes": [...], "events": [...], "upToMinute": n|null}.
// Player ids may be strings or numbers. Entries that are not objects are
// dropped; events with bad ids are kept so the resolver reports them.
func DecodeSubstitutions(data []byte) (Substitutions, []Diagnostic, error) {
	top, err := fields("substitutions", data)
	if err != nil {
		return Substitutions{}, nil, err
	}

	var (
		out   Substitutions
		diags []Diagnostic
	)
	for i, entry := range arrayField("startXI", top, &diags) {
		field := fmt.Sprintf("startXI.%d", i)
		obj, ok := asObject(entry)
		if !ok || obj == nil {
			diags = append(diags, Diagnostic{Field: "startXI", Key: fmt.Sprint(i), Raw: rawValue(entry), Reason: ReasonNotObject})
			continue
		}
		var slot substitution.Slot
		slot.Index, diags = countField(field, "index", obj, diags)
		slot.Grid = textField("grid", obj)
		player, ok := asObject(obj["player"])
		if !ok {
			diags = append(diags, Diagnostic{Field: field, Key: "player", Raw: rawValue(obj["player"]), Reason: ReasonNotObject})
		}
		slot.Player, diags = decodePlayer(field+".player", player, diags)
		out.StartXI = append(out.StartXI, slot)
	}

	for i, entry := range arrayField("substitutes", top, &diags) {
		obj, ok := asObject(entry)
		if !ok || obj == nil {
			diags = append(diags, Diagnostic{Field: "substitutes", Key: fmt.Sprint(i), Raw: rawValue(entry), Reason: ReasonNotObject})
			continue
		}
		var p substitution.Player
		p, diags = decodePlayer(fmt.Sprintf("substitutes.%d", i), obj, diags)
		out.Substitutes = append(out.Substitutes, p)
	}

	for i, entry := range arrayField("events", top, &diags) {
		field := fmt.Sprintf("events.%d", i)
		obj, ok := asObject(entry)
		if !ok || obj == nil {
			diags = append(diags, Diagnostic{Field: "events", Key: fmt.Sprint(i), Raw: rawValue(entry), Reason: ReasonNotObject})
			continue
		}
		var ev substitution.Event
		ev.Minute, diags = countField(field, "minute", obj, diags)
		ev.Stoppage, diags = countField(field, "stoppage", obj, diags)
		ev.PlayerOffID, diags = idField(field, "playerOffId", obj, diags)
		ev.PlayerOnID, diags = idField(field, "playerOnId", obj, diags)
		out.Events = append(out.Events, ev)
	}

	if raw, ok := top["upToMinute"]; ok && !isNull(raw) {
		v := rawValue(raw)
		n, issue := vote.Coerce("upToMinute", v)
		switch {
		case issue == nil:
			out.UpToMinute = &n
		case issue.Reason == vote.ReasonNegative:
			out.UpToMinute = &n
			diags = append(diags, Diagnostic{Field: "upToMinute", Key: "upToMinute", Raw: v, Reason: issue.Reason})
		default:
			// Unreadable cut-off: replay every event.
			diags = append(diags, Diagnostic{Field: "upToMinute", Key: "upToMinute", Raw: v, Reason: issue.Reason})
		}
	}
	return out, diags, nil
}

func decodePlayer(field string, obj map[string]json.RawMessage, diags []Diagnostic) (substitution.Player, []Diagnostic) {
	var p substitution.Player
	p.ID, diags = idField(field, "id", obj, diags)
	p.Name = textField("name", obj)
	p.Position = textField("position", obj)
	p.Number, diags = countField(field, "number", obj, diags)
	return p, diags
}

func arrayField(key string, top map[string]json.RawMessage, diags *[]Diagnostic) []json.RawMessage {
	arr, ok := asArray(top[key])
	if !ok {
		*diags = append(*diags, Diagnostic{Field: key, Raw: rawValue(top[key]), Reason: ReasonNotArray})
	}
	return arr
}
