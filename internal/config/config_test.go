package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/elevenvotes/consensus/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.DefaultFormation, convey.ShouldEqual, "4-3-3")
			convey.So(cfg.RedisAddr, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then derived values follow the fields", func() {
			p := cfg.MomentumParams()
			convey.So(p.WindowSize, convey.ShouldEqual, 10)
			convey.So(p.HotColdLimit, convey.ShouldEqual, 2)
			convey.So(p.SubRequestThreshold, convey.ShouldEqual, 3)
			convey.So(cfg.RedisTTL(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.AllowedOrigins(), convey.ShouldBeEmpty)
		})
	})

	convey.Convey("Given a list of websocket origins", t, func() {
		cfg := config.New()
		cfg.WSAllowedOrigins = " https://a.example ,, https://b.example"

		convey.Convey("Then blank entries are dropped and the rest trimmed", func() {
			convey.So(cfg.AllowedOrigins(), convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty addr", func(c *config.Config) { c.Addr = "" }},
		{"unknown log level", func(c *config.Config) { c.LogLevel = "loud" }},
		{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
		{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
		{"negative dedupe", func(c *config.Config) { c.DedupeSize = -1 }},
		{"zero body limit", func(c *config.Config) { c.MaxSnapshotBytes = 0 }},
		{"zero window", func(c *config.Config) { c.MomentumWindow = 0 }},
		{"negative hot/cold", func(c *config.Config) { c.HotColdLimit = -1 }},
		{"zero sub threshold", func(c *config.Config) { c.SubRequestThreshold = 0 }},
		{"negative redis ttl", func(c *config.Config) { c.RedisTTLSeconds = -5 }},
		{"unknown formation", func(c *config.Config) { c.DefaultFormation = "2-2-6" }},
		{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
	}

	convey.Convey("Given invalid settings", t, func() {
		for _, tc := range cases {
			convey.Convey("When the config has "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})

	convey.Convey("Given an unknown formation", t, func() {
		cfg := config.New()
		cfg.DefaultFormation = "1-1-8"

		convey.Convey("Then the error lists the known formations", func() {
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "4-4-2")
		})
	})

	convey.Convey("Given an unbounded dedupe cache", t, func() {
		cfg := config.New()
		cfg.DedupeSize = 0

		convey.Convey("Then the config is valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
