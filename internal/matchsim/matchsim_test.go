package matchsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/elevenvotes/consensus/internal/adapters/http/api"
	service "github.com/elevenvotes/consensus/internal/app"
	"github.com/elevenvotes/consensus/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	Convey("Given a simulated match of 20 minutes", t, func() {
		all, final, err := Generate("m-1", 20, 50, 7)

		Convey("Then one snapshot per kind is emitted every minute", func() {
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 20*6)
			So(len(final), ShouldEqual, 6)
			So(final, ShouldResemble, all[len(all)-6:])
		})

		Convey("Then snapshot ids are unique", func() {
			seen := map[string]bool{}
			for _, s := range all {
				So(seen[s.ID], ShouldBeFalse)
				seen[s.ID] = true
				So(s.MatchID, ShouldEqual, "m-1")
			}
		})

		Convey("Then vote counts are cumulative", func() {
			var first, last struct {
				Home       int `json:"home"`
				TotalVotes int `json:"totalVotes"`
			}
			So(json.Unmarshal(all[2].Data, &first), ShouldBeNil)
			So(json.Unmarshal(final[2].Data, &last), ShouldBeNil)
			So(all[2].Kind, ShouldEqual, KindPredictionVotes)
			So(first.TotalVotes, ShouldEqual, 10)
			So(last.TotalVotes, ShouldEqual, 200)
			So(last.Home, ShouldBeGreaterThanOrEqualTo, first.Home)
		})
	})

	Convey("Given the same seed twice", t, func() {
		_, a, _ := Generate("m-1", 5, 20, 42)
		_, b, _ := Generate("m-1", 5, 20, 42)

		Convey("Then the documents are identical", func() {
			for i := range a {
				So(bytes.Equal(a[i].Data, b[i].Data), ShouldBeTrue)
			}
		})
	})
}

func TestMatchActive(t *testing.T) {
	Convey("Given a match past its substitutions", t, func() {
		m := newMatch("m-1", 10, 1)
		m.minute = 90

		Convey("Then substituted players are replaced and invalid events change nothing", func() {
			active := m.active()
			So(active[8], ShouldEqual, "p12")
			So(active[6], ShouldEqual, "p13")
			So(active[10], ShouldEqual, "p14")
			So(active, ShouldNotContain, "p15")
		})
	})
}

func TestDuplicates(t *testing.T) {
	Convey("Given ten snapshots", t, func() {
		snaps := make([]Snapshot, 10)

		Convey("Then a ratio of 0.2 re-sends every fifth", func() {
			So(len(duplicates(snaps, 0.2)), ShouldEqual, 2)
		})

		Convey("Then a zero ratio re-sends nothing", func() {
			So(duplicates(snaps, 0), ShouldBeEmpty)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running consensus service", t, func() {
		svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(64), service.WithLogger(logger.Nop()))
		So(svc.Start(context.Background()), ShouldBeNil)
		mux := http.NewServeMux()
		api.NewServer(svc, svc, api.WithLogger(logger.Nop())).Register(mux)
		srv := httptest.NewServer(mux)

		Reset(func() {
			srv.Close()
			_ = svc.Stop(context.Background())
		})

		Convey("When a short match is simulated", func() {
			cfg := &Config{
				BaseURL:   srv.URL,
				MatchID:   "sim-test",
				Minutes:   15,
				Voters:    40,
				Workers:   4,
				Duplicate: 0.1,
				Seed:      3,
				Settle:    5 * time.Second,
			}
			stats, err := Run(context.Background(), cfg)

			Convey("Then every section is verified", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 15*6)
				So(stats.Verified, ShouldEqual, 6)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Duplicates+stats.Accepted+stats.Throttled, ShouldEqual, stats.Submitted)
				So(stats.Duplicates, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the service is unreachable", func() {
			_, err := Run(context.Background(), &Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestSubmitSnapshots(t *testing.T) {
	Convey("Given a service answering by snapshot id", t, func() {
		var throttled atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var s Snapshot
			_ = json.NewDecoder(r.Body).Decode(&s)
			switch s.ID {
			case "new":
				w.WriteHeader(http.StatusAccepted)
			case "dup":
				_, _ = w.Write([]byte(`{"status":"duplicate","duplicate":true}`))
			case "busy-once":
				if throttled.Add(1) == 1 {
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				w.WriteHeader(http.StatusAccepted)
			default:
				w.WriteHeader(http.StatusBadRequest)
			}
		}))
		Reset(srv.Close)

		client := newHTTPClient(srv.URL, time.Second)
		snaps := []Snapshot{{ID: "new"}, {ID: "dup"}, {ID: "busy-once"}, {ID: "bad"}}

		Convey("When the snapshots are submitted with a rate limit", func() {
			var c counters
			limiter := rate.NewLimiter(rate.Limit(1000), 1)
			err := submitSnapshots(context.Background(), &Config{Workers: 2}, client, limiter, snaps, &c)
			var stats Stats
			c.apply(&stats)

			Convey("Then every outcome is counted and 429 is retried", func() {
				So(err, ShouldBeNil)
				So(stats.Submitted, ShouldEqual, 4)
				So(stats.Accepted, ShouldEqual, 2)
				So(stats.Duplicates, ShouldEqual, 1)
				So(stats.Failed, ShouldEqual, 1)
				So(throttled.Load(), ShouldEqual, int32(2))
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			var c counters
			err := submitSnapshots(ctx, &Config{Workers: 2}, client, rate.NewLimiter(1, 1), snaps, &c)

			Convey("Then submission reports the cancellation", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}
