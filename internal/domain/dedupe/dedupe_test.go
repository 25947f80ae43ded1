package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/elevenvotes/consensus/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a default deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a snapshot id is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "snap-1")
			second := d.SeenAndRecord(ctx, "snap-1")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a recorded id is unrecorded", func() {
			d.SeenAndRecord(ctx, "snap-1")
			d.Unrecord(ctx, "snap-1")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "snap-1"), ShouldBeFalse)
			})
		})

		Convey("When an unknown id is unrecorded", func() {
			d.Unrecord(ctx, "missing")

			Convey("Then the size is unchanged", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a deduper bounded to three ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"a", "b", "c"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
		}

		Convey("When a fourth id arrives", func() {
			So(d.SeenAndRecord(ctx, "d"), ShouldBeFalse)

			Convey("Then the oldest id is forgotten", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When an old id is seen again before the fourth arrives", func() {
			So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
			d.SeenAndRecord(ctx, "d")

			Convey("Then the refreshed id survives eviction", func() {
				So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		Convey("When many ids are recorded", func() {
			const n = 1000
			for i := 0; i < n; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("snap-%d", i))
			}

			Convey("Then none are evicted", func() {
				So(d.Size(), ShouldEqual, n)
				So(d.SeenAndRecord(ctx, "snap-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by several goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const goroutines, perGoroutine = 10, 100

		Convey("When every goroutine records the same ids", func() {
			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				fresh int
			)
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perGoroutine; i++ {
						if !d.SeenAndRecord(context.Background(), fmt.Sprintf("snap-%d", i)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each id is new exactly once", func() {
				So(fresh, ShouldEqual, perGoroutine)
				So(d.Size(), ShouldEqual, perGoroutine)
			})
		})
	})
}
