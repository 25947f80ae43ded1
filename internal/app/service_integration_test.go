package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elevenvotes/consensus/internal/adapters/http/api"
	service "github.com/elevenvotes/consensus/internal/app"
	"github.com/elevenvotes/consensus/internal/domain/types"
	"github.com/elevenvotes/consensus/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/snapshots", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post snapshot: %v", err)
	}
	_ = resp.Body.Close()
	return resp
}

// waitForView polls GET /matches/{id} until ready accepts the view.
func waitForView(url, matchID string, ready func(types.MatchView) bool) (types.MatchView, bool) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/matches/" + matchID)
		if err == nil {
			var v types.MatchView
			if resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&v) == nil && ready(v) {
				_ = resp.Body.Close()
				return v, true
			}
			_ = resp.Body.Close()
		}
		time.Sleep(20 * time.Millisecond)
	}
	return types.MatchView{}, false
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a running service behind the HTTP API", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithDedupeSize(100),
			service.WithLogger(logger.Nop()),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		So(svc.Start(ctx), ShouldBeNil)

		mux := http.NewServeMux()
		api.NewServer(svc, svc, api.WithLogger(logger.Nop())).Register(mux)
		srv := httptest.NewServer(mux)

		Reset(func() {
			srv.Close()
			_ = svc.Stop(context.Background())
			cancel()
		})

		Convey("When snapshots of several kinds are posted", func() {
			r1 := post(t, srv.URL, `{"id": "a", "matchId": "m-9", "kind": "motm_votes",
				"data": {"playerVotes": {"10": 6, "7": 4}}}`)
			r2 := post(t, srv.URL, `{"id": "b", "matchId": "m-9", "kind": "mood",
				"data": {"buckets": {"12": {"excited": 1}}}}`)

			Convey("Then they are accepted", func() {
				So(r1.StatusCode, ShouldEqual, http.StatusAccepted)
				So(r2.StatusCode, ShouldEqual, http.StatusAccepted)
			})

			Convey("Then the view sections appear after processing", func() {
				v, ok := waitForView(srv.URL, "m-9", func(v types.MatchView) bool {
					return v.MOTM != nil && v.Mood != nil
				})
				So(ok, ShouldBeTrue)
				So(v.MOTM.Breakdown[0].Key, ShouldEqual, "10")
				So(v.MOTM.Breakdown[0].Percentage, ShouldEqual, 60)
				So(v.Mood.Latest.Sentiment, ShouldEqual, 100)
				So(svc.GetStats()["matches"], ShouldEqual, 1)
			})

			Convey("And the same id is posted again", func() {
				dup := post(t, srv.URL, `{"id": "a", "matchId": "m-9", "kind": "motm_votes", "data": {}}`)

				Convey("Then it is acknowledged as a duplicate", func() {
					So(dup.StatusCode, ShouldEqual, http.StatusOK)
				})
			})
		})

		Convey("When a snapshot has an unknown kind", func() {
			resp := post(t, srv.URL, `{"id": "c", "matchId": "m-9", "kind": "goals", "data": {}}`)

			Convey("Then it is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a match has no snapshots", func() {
			resp, err := http.Get(srv.URL + "/matches/unknown")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()

			Convey("Then it is not found", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
