package matchsim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	service "github.com/elevenvotes/consensus/internal/app"
	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/pkg/logger"
)

// expectSections computes locally what the service should serve for the last
// snapshot of each kind. It assumes the service runs with default engine
// parameters.
func expectSections(ctx context.Context, final []Snapshot) (map[string]any, error) {
	engine := service.NewEngine()
	out := make(map[string]any, len(final))
	for _, s := range final {
		sec, _, err := engine.Compute(ctx, model.Snapshot{ID: s.ID, MatchID: s.MatchID, Kind: model.Kind(s.Kind), Data: s.Data})
		if err != nil {
			return nil, fmt.Errorf("compute expected %s: %w", s.Kind, err)
		}
		norm, err := normalize(sec.Data)
		if err != nil {
			return nil, err
		}
		out[s.Kind] = norm
	}
	return out, nil
}

// normalize round-trips v through JSON so it compares equal to decoded responses.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal section: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal section: %w", err)
	}
	return out, nil
}

// fetchSection returns the data of GET /matches/{id}/{kind}, or nil when it
// is not computed yet.
func fetchSection(ctx context.Context, client *httpClient, matchID, kind string) (any, error) {
	status, body, err := client.get(ctx, "/matches/"+matchID+"/"+kind)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("get %s section: status %d", kind, status)
	}
	var update struct {
		Data any `json:"data"`
	}
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("decode %s section: %w", kind, err)
	}
	return update.Data, nil
}

// verifyView polls the service until every section equals its expectation or
// cfg.Settle elapses. It returns how many sections matched.
func verifyView(ctx context.Context, cfg *Config, client *httpClient, expected map[string]any) (int, error) {
	log := logger.Get().Named("matchsim")
	deadline := time.Now().Add(cfg.Settle)
	pending := make(map[string]any, len(expected))
	for k, v := range expected {
		pending[k] = v
	}

	for {
		for kind, want := range pending {
			got, err := fetchSection(ctx, client, cfg.MatchID, kind)
			if err != nil {
				return len(expected) - len(pending), err
			}
			if got != nil && reflect.DeepEqual(got, want) {
				log.Info(ctx, "section verified", logger.String("kind", kind))
				delete(pending, kind)
			}
		}
		if len(pending) == 0 {
			return len(expected), nil
		}
		if time.Now().After(deadline) {
			kinds := make([]string, 0, len(pending))
			for k := range pending {
				kinds = append(kinds, k)
			}
			return len(expected) - len(pending), fmt.Errorf("sections did not converge: %v", kinds)
		}
		select {
		case <-ctx.Done():
			return len(expected) - len(pending), ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
