package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/elevenvotes/consensus/internal/adapters/repository"
	service "github.com/elevenvotes/consensus/internal/app"
	"github.com/elevenvotes/consensus/internal/domain/dedupe"
	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/internal/domain/ranking"
	"github.com/elevenvotes/consensus/internal/domain/types"
	"github.com/elevenvotes/consensus/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type recorder struct {
	mu      sync.Mutex
	updates []types.SectionUpdate
}

func (r *recorder) Broadcast(u types.SectionUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []types.SectionUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.SectionUpdate(nil), r.updates...)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(50),
			service.WithDedupeSize(25),
			service.WithLogger(logger.Nop()),
		)

		Convey("Then the configuration is reported before start", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 50)
			So(stats["dedupeSize"], ShouldEqual, 25)
		})

		Convey("Then operations needing the pipeline fail", func() {
			So(errors.Is(svc.Enqueue(context.Background(), model.Snapshot{ID: "x"}), service.ErrNotStarted), ShouldBeTrue)
			_, err := svc.View(context.Background(), "m-1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_DedupeSize(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service configured with dedupe size 0", t, func() {
		svc := service.New(service.WithDedupeSize(0), service.WithLogger(logger.Nop()))

		Convey("Then the size is kept rather than replaced by the default", func() {
			So(svc.GetStats()["dedupeSize"], ShouldEqual, 0)
		})

		Convey("When more ids than the default bound are recorded", func() {
			for i := 0; i <= dedupe.DefaultMaxSize; i++ {
				svc.SeenAndRecord(ctx, "id-"+strconv.Itoa(i))
			}

			Convey("Then the oldest id is still remembered", func() {
				So(svc.SeenAndRecord(ctx, "id-0"), ShouldBeTrue)
				So(svc.Size(), ShouldEqual, int64(dedupe.DefaultMaxSize+1))
			})
		})
	})

	Convey("Given a negative dedupe size", t, func() {
		svc := service.New(service.WithDedupeSize(-1), service.WithLogger(logger.Nop()))

		Convey("Then the default bound is used", func() {
			So(svc.GetStats()["dedupeSize"], ShouldEqual, dedupe.DefaultMaxSize)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(2), service.WithLogger(logger.Nop()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("Then starting again has no effect", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.GetStats()["matches"], ShouldEqual, 0)
		})

		Convey("When stopping the service", func() {
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it is marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("Then stopping again has no effect", func() {
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Dedupe(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))
		ctx := context.Background()

		Convey("When the same id is recorded twice", func() {
			first := svc.SeenAndRecord(ctx, "snap-1")
			second := svc.SeenAndRecord(ctx, "snap-1")

			Convey("Then only the second is a duplicate", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(svc.Size(), ShouldEqual, 1)
			})

			Convey("And after Unrecord the id is new again", func() {
				svc.Unrecord(ctx, "snap-1")
				So(svc.SeenAndRecord(ctx, "snap-1"), ShouldBeFalse)
			})
		})
	})
}

func TestService_Process(t *testing.T) {
	Convey("Given a service with a memory store and a broadcaster", t, func() {
		rec := &recorder{}
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithStore(repository.NewMemoryStore()),
			service.WithBroadcaster(rec),
		)
		ctx := context.Background()
		t0 := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

		prediction := func(at time.Time, data string) model.Snapshot {
			return model.Snapshot{ID: at.String(), MatchID: "m-1", Kind: model.KindPredictionVotes, Data: []byte(data), ReceivedAt: at}
		}

		Convey("When a prediction snapshot is processed", func() {
			err := svc.Process(ctx, prediction(t0, `{"home": 1, "draw": 1, "away": 2}`))

			Convey("Then the view holds the section", func() {
				So(err, ShouldBeNil)
				v, err := svc.View(ctx, "m-1")
				So(err, ShouldBeNil)
				So(v.Prediction, ShouldNotBeNil)
				So(v.Prediction.Favourite, ShouldEqual, ranking.OutcomeAway)
				So(v.UpdatedAt, ShouldEqual, t0)
			})

			Convey("Then the update is broadcast", func() {
				updates := rec.all()
				So(len(updates), ShouldEqual, 1)
				So(updates[0].MatchID, ShouldEqual, "m-1")
				So(updates[0].Kind, ShouldEqual, model.KindPredictionVotes)
				So(updates[0].UpdatedAt, ShouldEqual, t0)
			})

			Convey("And an older snapshot of the same kind arrives", func() {
				err := svc.Process(ctx, prediction(t0.Add(-time.Minute), `{"home": 5}`))

				Convey("Then it is ignored", func() {
					So(err, ShouldBeNil)
					v, _ := svc.View(ctx, "m-1")
					So(v.Prediction.Favourite, ShouldEqual, ranking.OutcomeAway)
					So(len(rec.all()), ShouldEqual, 1)
				})
			})
		})

		Convey("When a snapshot has an unknown kind", func() {
			err := svc.Process(ctx, model.Snapshot{ID: "x", MatchID: "m-1", Kind: "goals", Data: []byte(`{}`)})

			Convey("Then ErrUnknownKind is returned and nothing is stored", func() {
				So(errors.Is(err, service.ErrUnknownKind), ShouldBeTrue)
				_, err := svc.View(ctx, "m-1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(rec.all(), ShouldBeEmpty)
			})
		})
	})
}

// levelLog records "level: msg" for every entry.
type levelLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *levelLog) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *levelLog) Info(_ context.Context, msg string, _ ...logger.Field)  { l.add("info", msg) }
func (l *levelLog) Error(_ context.Context, msg string, _ ...logger.Field) { l.add("error", msg) }
func (l *levelLog) Debug(_ context.Context, msg string, _ ...logger.Field) { l.add("debug", msg) }
func (l *levelLog) Warn(_ context.Context, msg string, _ ...logger.Field)  { l.add("warn", msg) }
func (l *levelLog) Fatal(_ context.Context, msg string, _ ...logger.Field) { l.add("fatal", msg) }
func (l *levelLog) Named(string) logger.Logger                            { return l }

func TestService_ReportsRepairsAtDebug(t *testing.T) {
	Convey("Given a service with a recording logger", t, func() {
		log := &levelLog{}
		svc := service.New(
			service.WithLogger(log),
			service.WithStore(repository.NewMemoryStore()),
		)

		Convey("When a snapshot with a negative count is processed", func() {
			err := svc.Process(context.Background(), model.Snapshot{
				ID: "p-1", MatchID: "m-1", Kind: model.KindPredictionVotes,
				Data: []byte(`{"home": -3, "draw": 1, "away": 2}`), ReceivedAt: time.Now(),
			})

			Convey("Then the repair is logged at debug and nothing at warn", func() {
				So(err, ShouldBeNil)
				So(log.entries, ShouldContain, "debug: snapshot value repaired")
				So(log.entries, ShouldNotContain, "warn: snapshot value repaired")
			})
		})
	})
}
