package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elevenvotes/consensus/internal/adapters/http/api"
	"github.com/elevenvotes/consensus/internal/adapters/mq/queue"
	"github.com/elevenvotes/consensus/internal/adapters/repository"
	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/internal/domain/ranking"
	"github.com/elevenvotes/consensus/internal/domain/types"
	"github.com/elevenvotes/consensus/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	mu         sync.Mutex
	seen       map[string]bool
	enqueued   []model.Snapshot
	enqueueErr error
	views      map[string]types.MatchView
	viewErr    error
}

func newMockDeps() *mockDeps {
	return &mockDeps{seen: map[string]bool{}, views: map[string]types.MatchView{}}
}

func (m *mockDeps) SeenAndRecord(_ context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDeps) Unrecord(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
}

func (m *mockDeps) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.seen))
}

func (m *mockDeps) Enqueue(_ context.Context, s model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.enqueued = append(m.enqueued, s)
	return nil
}

func (m *mockDeps) View(_ context.Context, matchID string) (types.MatchView, error) {
	if m.viewErr != nil {
		return types.MatchView{}, m.viewErr
	}
	v, ok := m.views[matchID]
	if !ok {
		return types.MatchView{}, fmt.Errorf("%w: %s", repository.ErrNotFound, matchID)
	}
	return v, nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]any { return map[string]any{"started": true} }

func newMux(deps *mockDeps, opts ...api.Option) *http.ServeMux {
	opts = append([]api.Option{api.WithLogger(logger.Nop())}, opts...)
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}, opts...).Register(mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}

func TestPostSnapshot(t *testing.T) {
	const valid = `{"id":"s1","matchId":"m1","kind":"motm_votes","data":{"playerVotes":{"10":3}}}`

	Convey("Given the API server", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When a valid snapshot is posted", func() {
			rec := do(mux, http.MethodPost, "/snapshots", valid)

			Convey("Then it is accepted and enqueued", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(decode(rec)["status"], ShouldEqual, "accepted")
				So(len(deps.enqueued), ShouldEqual, 1)
				So(deps.enqueued[0].MatchID, ShouldEqual, "m1")
				So(deps.enqueued[0].Kind, ShouldEqual, model.KindMOTMVotes)
				So(deps.enqueued[0].ReceivedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And the same id is posted again", func() {
				rec := do(mux, http.MethodPost, "/snapshots", valid)

				Convey("Then it is acknowledged as a duplicate", func() {
					So(rec.Code, ShouldEqual, http.StatusOK)
					So(decode(rec)["duplicate"], ShouldEqual, true)
					So(len(deps.enqueued), ShouldEqual, 1)
				})
			})
		})

		Convey("When a snapshot without id is posted", func() {
			rec := do(mux, http.MethodPost, "/snapshots", `{"matchId":"m1","kind":"mood","data":{}}`)

			Convey("Then an id is generated", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(decode(rec)["snapshotId"], ShouldNotBeEmpty)
				So(deps.enqueued[0].ID, ShouldNotBeEmpty)
			})
		})

		Convey("When the kind is unknown", func() {
			rec := do(mux, http.MethodPost, "/snapshots", `{"id":"s1","matchId":"m1","kind":"weather","data":{}}`)

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(rec)["message"], ShouldContainSubstring, "weather")
			})
		})

		Convey("When the match id is missing", func() {
			rec := do(mux, http.MethodPost, "/snapshots", `{"id":"s1","kind":"mood","data":{}}`)

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When data is not an object", func() {
			rec := do(mux, http.MethodPost, "/snapshots", `{"id":"s1","matchId":"m1","kind":"mood","data":[1]}`)

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body is not JSON", func() {
			rec := do(mux, http.MethodPost, "/snapshots", `not json`)

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(rec)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the queue is full", func() {
			deps.enqueueErr = queue.ErrFull
			rec := do(mux, http.MethodPost, "/snapshots", valid)

			Convey("Then backpressure is reported and the id can be retried", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
				So(deps.Size(), ShouldEqual, 0)
			})
		})

		Convey("When the queue is closed", func() {
			deps.enqueueErr = queue.ErrClosed
			rec := do(mux, http.MethodPost, "/snapshots", valid)

			Convey("Then the service is unavailable", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})

	Convey("Given a small body limit", t, func() {
		deps := newMockDeps()
		mux := newMux(deps, api.WithMaxSnapshotBytes(32))

		Convey("When a larger snapshot is posted", func() {
			rec := do(mux, http.MethodPost, "/snapshots", valid)

			Convey("Then it is rejected as too large", func() {
				So(rec.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(len(deps.enqueued), ShouldEqual, 0)
			})
		})
	})
}

func TestGetMatches(t *testing.T) {
	Convey("Given a match with a prediction section", t, func() {
		deps := newMockDeps()
		at := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
		deps.views["m1"] = types.MatchView{
			MatchID:    "m1",
			UpdatedAt:  at,
			Prediction: &ranking.Prediction{Home: 52, Draw: 13, Away: 35, Favourite: "home", TotalVotes: 23},
		}
		mux := newMux(deps)

		Convey("When the full view is requested", func() {
			rec := do(mux, http.MethodGet, "/matches/m1", "")

			Convey("Then the view is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decode(rec)
				So(body["matchId"], ShouldEqual, "m1")
				So(body["prediction"].(map[string]any)["favourite"], ShouldEqual, "home")
				So(body, ShouldNotContainKey, "mood")
			})
		})

		Convey("When a section is requested by field name", func() {
			rec := do(mux, http.MethodGet, "/matches/m1/prediction", "")

			Convey("Then the section is returned with its kind", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decode(rec)
				So(body["kind"], ShouldEqual, "prediction_votes")
				So(body["data"].(map[string]any)["home"], ShouldEqual, 52.0)
			})
		})

		Convey("When a section is requested by kind", func() {
			rec := do(mux, http.MethodGet, "/matches/m1/prediction_votes", "")

			Convey("Then it resolves the same way", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When a section has not been computed yet", func() {
			rec := do(mux, http.MethodGet, "/matches/m1/mood", "")

			Convey("Then it is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the section name is unknown", func() {
			rec := do(mux, http.MethodGet, "/matches/m1/weather", "")

			Convey("Then it is a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the match is unknown", func() {
			rec := do(mux, http.MethodGet, "/matches/nope", "")

			Convey("Then it is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(decode(rec)["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When the store fails", func() {
			deps.viewErr = fmt.Errorf("disk on fire")
			rec := do(mux, http.MethodGet, "/matches/m1", "")

			Convey("Then it is an internal error", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given the API server with live and docs handlers", t, func() {
		live := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
		docs := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("openapi: 3.0.3")) })
		mux := newMux(newMockDeps(), api.WithLive(live), api.WithDocs(map[string]http.Handler{"/openapi.yaml": docs}))

		Convey("Then /healthz serves metrics", func() {
			rec := do(mux, http.MethodGet, "/healthz", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "elevenvotes_consensus")
		})

		Convey("Then /stats serves the provider's stats", func() {
			rec := do(mux, http.MethodGet, "/stats", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode(rec)["started"], ShouldEqual, true)
		})

		Convey("Then /ws reaches the live handler", func() {
			So(do(mux, http.MethodGet, "/ws", "").Code, ShouldEqual, http.StatusTeapot)
		})

		Convey("Then docs are mounted", func() {
			So(do(mux, http.MethodGet, "/openapi.yaml", "").Body.String(), ShouldContainSubstring, "openapi")
		})

		Convey("Then wrong methods are refused", func() {
			So(do(mux, http.MethodGet, "/snapshots", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}
