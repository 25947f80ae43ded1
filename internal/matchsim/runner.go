package matchsim

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/elevenvotes/consensus/pkg/logger"
)

func applyDefaults(cfg *Config) {
	if cfg.MatchID == "" {
		cfg.MatchID = "sim-" + uuid.NewString()
	}
	if cfg.Minutes < 1 {
		cfg.Minutes = DefaultMinutes
	}
	if cfg.Voters < 1 {
		cfg.Voters = DefaultVoters
	}
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	cfg.Duplicate = min(max(cfg.Duplicate, 0), 1)
}

// Run simulates a match against the service and verifies the resulting view.
//
// Snapshots for every minute but the last are posted concurrently, then a
// sample is re-sent to exercise deduplication. The final snapshot of each kind
// is posted last so it is the newest the service has seen; the served view
// must then equal a local computation over those documents.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	applyDefaults(cfg)
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("matchsim")

	log.Info(ctx, "starting match simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("matchID", cfg.MatchID),
		logger.Int("minutes", cfg.Minutes),
		logger.Int("voters", cfg.Voters),
		logger.Int("workers", cfg.Workers),
		logger.Float64("rate", cfg.Rate),
		logger.Int64("seed", int64(cfg.Seed)), //nolint:gosec // logged only
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	all, final, err := Generate(cfg.MatchID, cfg.Minutes, cfg.Voters, cfg.Seed)
	if err != nil {
		return stats, fmt.Errorf("snapshot generation failed: %w", err)
	}
	stats.Generated = len(all)
	bulk := all[:len(all)-len(final)]

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Workers)
	}

	var c counters
	err = submitSnapshots(ctx, cfg, client, limiter, bulk, &c)
	if resend := duplicates(bulk, cfg.Duplicate); err == nil && len(resend) > 0 {
		err = submitSnapshots(ctx, cfg, client, limiter, resend, &c)
	}
	if err == nil {
		// One sender keeps the final snapshots ordered after everything else.
		err = submitSnapshots(ctx, &Config{Workers: 1, Verbose: cfg.Verbose}, client, limiter, final, &c)
	}
	c.apply(stats)
	if err != nil {
		return stats, fmt.Errorf("snapshot submission interrupted: %w", err)
	}

	expected, err := expectSections(ctx, final)
	if err != nil {
		return stats, err
	}
	stats.Verified, err = verifyView(ctx, cfg, client, expected)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logFinalStats(ctx, log, stats)
	if err != nil {
		return stats, fmt.Errorf("view verification failed: %w", err)
	}
	log.Info(ctx, "simulation completed successfully")
	return stats, nil
}

// duplicates returns every n-th snapshot so that about ratio of them is re-sent.
func duplicates(snapshots []Snapshot, ratio float64) []Snapshot {
	if ratio <= 0 || len(snapshots) == 0 {
		return nil
	}
	step := max(int(1/ratio), 1)
	var out []Snapshot
	for i := 0; i < len(snapshots); i += step {
		out = append(out, snapshots[i])
	}
	return out
}

func checkServiceHealth(ctx context.Context, client *httpClient) error {
	status, _, err := client.get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", status)
	}
	return nil
}

func logFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed),
		logger.Int("sectionsVerified", stats.Verified),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("snapshotsPerSecond", perSecond),
	)
}
