package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elevenvotes/consensus/internal/adapters/http/ws"
	"github.com/elevenvotes/consensus/internal/config"
	"github.com/elevenvotes/consensus/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestNewMux(t *testing.T) {
	convey.Convey("Given the wired application", t, func() {
		cfg := config.New()
		cfg.WorkerCount = 2
		cfg.QueueSize = 10

		ctx, cancel := context.WithCancel(context.Background())
		hub := ws.NewHub(ws.WithLogger(logger.Nop()))
		go hub.Run(ctx)

		svc := newService(cfg, logger.Nop(), hub)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		srv := httptest.NewServer(newMux(cfg, svc, hub))

		convey.Reset(func() {
			srv.Close()
			_ = svc.Stop(context.Background())
			cancel()
		})

		get := func(path string) int {
			resp, err := http.Get(srv.URL + path)
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			return resp.StatusCode
		}

		convey.Convey("Then the operational and documentation routes are served", func() {
			convey.So(get("/healthz"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/stats"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml"), convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs"), convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("When a snapshot is posted", func() {
			body := `{"id": "s-1", "matchId": "m-1", "kind": "prediction_votes", "data": {"home": 2, "away": 1}}`
			resp, err := http.Post(srv.URL+"/snapshots", "application/json", bytes.NewBufferString(body))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()

			convey.Convey("Then it is accepted and the section becomes readable", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)

				status := 0
				for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); {
					if status = get("/matches/m-1/prediction"); status == http.StatusOK {
						break
					}
					time.Sleep(20 * time.Millisecond)
				}
				convey.So(status, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a config listening on a free port", t, func() {
		cfg := config.New()
		cfg.Addr = "127.0.0.1:0"
		cfg.WorkerCount = 1

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- run(ctx, cfg, logger.Nop()) }()

			time.Sleep(50 * time.Millisecond)
			cancel()

			convey.Convey("Then run shuts down cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(10 * time.Second):
					convey.So("run did not return", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the runtime metrics updater", t, func() {
		convey.Convey("Then it updates metrics without panicking", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the ticker loop exits with its context", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
