package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/elevenvotes/consensus/internal/adapters/codec"
	"github.com/elevenvotes/consensus/internal/domain/lineup"
	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/internal/domain/momentum"
	"github.com/elevenvotes/consensus/internal/domain/ranking"
	"github.com/elevenvotes/consensus/internal/domain/sentiment"
	"github.com/elevenvotes/consensus/internal/domain/substitution"
	"github.com/elevenvotes/consensus/internal/domain/types"
)

// Diagnostics collects the non-fatal findings of one Compute call.
type Diagnostics struct {
	Decode  []codec.Diagnostic
	Skipped []substitution.SkippedEvent
}

// Empty reports whether nothing was repaired or skipped.
func (d Diagnostics) Empty() bool {
	return len(d.Decode) == 0 && len(d.Skipped) == 0
}

// Engine turns snapshots into view sections. It holds only immutable
// configuration and is safe for concurrent use.
type Engine struct {
	params    momentum.Params
	formation string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMomentumParams overrides momentum.DefaultParams. Non-positive fields
// keep their defaults; use WithHotColdLimit to turn hot/cold flags off.
func WithMomentumParams(p momentum.Params) EngineOption {
	return func(e *Engine) {
		if p.WindowSize > 0 {
			e.params.WindowSize = p.WindowSize
		}
		if p.HotColdLimit > 0 {
			e.params.HotColdLimit = p.HotColdLimit
		}
		if p.SubRequestThreshold > 0 {
			e.params.SubRequestThreshold = p.SubRequestThreshold
		}
	}
}

// WithHotColdLimit sets how many players may be flagged hot and cold. 0
// disables the flags; negative values keep the default.
func WithHotColdLimit(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.params.HotColdLimit = n
		}
	}
}

// WithFallbackFormation sets the formation used before any formation vote arrives.
func WithFallbackFormation(formation string) EngineOption {
	return func(e *Engine) {
		if formation != "" {
			e.formation = formation
		}
	}
}

// NewEngine creates an Engine with default parameters.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		params:    momentum.DefaultParams(),
		formation: lineup.DefaultFormation,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the momentum parameters in effect.
func (e *Engine) Params() momentum.Params { return e.params }

// Compute decodes the snapshot's document and runs the matching aggregation.
// It fails only for unknown kinds and undecodable documents.
func (e *Engine) Compute(ctx context.Context, s model.Snapshot) (types.Section, Diagnostics, error) {
	if err := ctx.Err(); err != nil {
		return types.Section{}, Diagnostics{}, err
	}

	var (
		data  any
		diags Diagnostics
		err   error
	)
	switch s.Kind {
	case model.KindLineupVotes:
		data, diags.Decode, err = e.lineup(s.Data)
	case model.KindMOTMVotes:
		data, diags.Decode, err = e.motm(s.Data)
	case model.KindPredictionVotes:
		data, diags.Decode, err = e.prediction(s.Data)
	case model.KindMomentum:
		data, diags.Decode, err = e.momentum(s.Data)
	case model.KindMood:
		data, diags.Decode, err = e.mood(s.Data)
	case model.KindSubstitutions:
		var sec types.SubstitutionSection
		sec, diags.Decode, err = e.substitutions(s.Data)
		diags.Skipped = sec.Skipped
		data = sec
	default:
		return types.Section{}, Diagnostics{}, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}
	if err != nil {
		return types.Section{}, diags, err
	}
	return types.Section{Kind: s.Kind, Data: data}, diags, nil
}

func (e *Engine) lineup(raw []byte) (any, []codec.Diagnostic, error) {
	doc, diags, err := codec.DecodeLineupVotes(raw)
	if err != nil {
		return nil, diags, err
	}
	c := lineup.Build(doc.Formation, doc.Slots, lineup.WithFallbackFormation(e.formation))
	layout, _ := lineup.Layout(c.WinningFormation)
	return types.LineupSection{Consensus: c, Layout: layout}, diags, nil
}

func (e *Engine) motm(raw []byte) (any, []codec.Diagnostic, error) {
	doc, diags, err := codec.DecodeMOTMVotes(raw)
	if err != nil {
		return nil, diags, err
	}
	ranked, total := ranking.MOTMBreakdown(doc.Players, doc.TotalVotes)
	return types.MOTMSection{Breakdown: ranked, TotalVotes: total}, diags, nil
}

func (e *Engine) prediction(raw []byte) (any, []codec.Diagnostic, error) {
	a, diags, err := codec.DecodePredictionVotes(raw)
	if err != nil {
		return nil, diags, err
	}
	return ranking.PredictionBreakdown(a), diags, nil
}

func (e *Engine) momentum(raw []byte) (any, []codec.Diagnostic, error) {
	doc, diags, err := codec.DecodeMomentum(raw)
	if err != nil {
		return nil, diags, err
	}
	p := e.params
	if doc.WindowSize > 0 {
		p.WindowSize = doc.WindowSize
	}
	statuses := momentum.ComputeStatus(doc.Timelines, doc.CurrentMinute, p)

	players := make([]momentum.Status, 0, len(statuses))
	for _, st := range statuses {
		players = append(players, st)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].PlayerID < players[j].PlayerID })

	return types.MomentumSection{
		CurrentMinute: doc.CurrentMinute,
		WindowSize:    p.WindowSize,
		Players:       players,
		Summary:       momentum.Summarize(statuses),
	}, diags, nil
}

func (e *Engine) mood(raw []byte) (any, []codec.Diagnostic, error) {
	buckets, diags, err := codec.DecodeMood(raw)
	if err != nil {
		return nil, diags, err
	}
	sec := types.MoodSection{Series: sentiment.ScoreSeries(buckets)}
	if n := len(sec.Series); n > 0 {
		latest := sec.Series[n-1]
		sec.Latest = &latest
	}
	return sec, diags, nil
}

func (e *Engine) substitutions(raw []byte) (types.SubstitutionSection, []codec.Diagnostic, error) {
	doc, diags, err := codec.DecodeSubstitutions(raw)
	if err != nil {
		return types.SubstitutionSection{}, diags, err
	}
	res := substitution.Resolve(doc.StartXI, doc.Substitutes, doc.Events, doc.UpToMinute)
	return types.SubstitutionSection{
		UpToMinute: doc.UpToMinute,
		State:      res.State,
		Applied:    res.Applied,
		Skipped:    res.Skipped,
	}, diags, nil
}
