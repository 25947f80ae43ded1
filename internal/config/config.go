// Package config defines service configuration and how it is loaded.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/elevenvotes/consensus/internal/domain/lineup"
	"github.com/elevenvotes/consensus/internal/domain/momentum"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory snapshot queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// WorkerCount sets the number of aggregation workers.
	WorkerCount int `koanf:"worker_count" validate:"min=1"`

	// DedupeSize sets how many snapshot ids are remembered. 0 means unbounded.
	DedupeSize int `koanf:"dedupe_size" validate:"min=0"`

	// MaxSnapshotBytes caps POST /snapshots bodies.
	MaxSnapshotBytes int64 `koanf:"max_snapshot_bytes" validate:"min=1"`

	// Momentum tuning.
	MomentumWindow      int `koanf:"momentum_window" validate:"min=1"`
	HotColdLimit        int `koanf:"hot_cold_limit" validate:"min=0"`
	SubRequestThreshold int `koanf:"sub_request_threshold" validate:"min=1"`

	// DefaultFormation is reported before any formation vote arrives.
	DefaultFormation string `koanf:"default_formation" validate:"formation"`

	// RedisAddr enables the Redis view cache when set (host:port or redis:// URL).
	RedisAddr string `koanf:"redis_addr"`

	// RedisTTLSeconds expires cached views. 0 keeps them forever.
	RedisTTLSeconds int `koanf:"redis_ttl_seconds" validate:"min=0"`

	// WSAllowedOrigins is a comma-separated list of origins allowed to open
	// GET /ws. Empty accepts every origin.
	WSAllowedOrigins string `koanf:"ws_allowed_origins"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		MaxSnapshotBytes:    1 << 20,
		MomentumWindow:      momentum.DefaultWindowSize,
		HotColdLimit:        momentum.DefaultHotColdLimit,
		SubRequestThreshold: momentum.DefaultSubRequestThreshold,
		DefaultFormation:    lineup.DefaultFormation,
		RedisTTLSeconds:     3600,
	}
}

// MomentumParams returns the configured momentum tuning.
func (c *Config) MomentumParams() momentum.Params {
	return momentum.Params{
		WindowSize:          c.MomentumWindow,
		HotColdLimit:        c.HotColdLimit,
		SubRequestThreshold: c.SubRequestThreshold,
	}
}

// RedisTTL returns RedisTTLSeconds as a duration.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.RedisTTLSeconds) * time.Second
}

// AllowedOrigins splits WSAllowedOrigins, dropping blank entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.WSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("formation", func(fl validator.FieldLevel) bool {
		_, ok := lineup.Layout(fl.Field().String())
		return ok
	})
	return v
}

// Validate checks every setting and wraps failures in ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "formation" {
			return fmt.Errorf("%w: unknown default_formation %q (known: %s)",
				ErrInvalidConfig, c.DefaultFormation, strings.Join(lineup.Formations(), ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
