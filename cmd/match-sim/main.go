package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/elevenvotes/consensus/internal/matchsim"
	"github.com/elevenvotes/consensus/pkg/logger"
)

const (
	defaultDuplicates = 0.05
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		matchID    = flag.String("match", "", "Match id (default: generated)")
		minutes    = flag.Int("minutes", matchsim.DefaultMinutes, "Match minutes to simulate")
		voters     = flag.Int("voters", matchsim.DefaultVoters, "Votes per minute and kind")
		workers    = flag.Int("workers", matchsim.DefaultWorkers, "Concurrent senders")
		ratePerSec = flag.Float64("rate", 0, "Snapshots per second, 0 for unlimited")
		duplicates = flag.Float64("duplicates", defaultDuplicates, "Fraction of snapshots re-sent with the same id")
		seed       = flag.Uint64("seed", 0, "Random seed (default: clock)")
		timeout    = flag.Duration("timeout", matchsim.DefaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", matchsim.DefaultSettle, "How long to wait for the view to converge")
		logFormat  = flag.String("log-format", "text", "text or json")
		verbose    = flag.Bool("verbose", false, "Log every snapshot that was not accepted")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		matchsim.ShowHelp(os.Stdout)
		return
	}
	if err := logger.Init(logger.WithFormat(*logFormat), logger.WithCaller(false)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &matchsim.Config{
		BaseURL:   *baseURL,
		MatchID:   *matchID,
		Minutes:   *minutes,
		Voters:    *voters,
		Workers:   *workers,
		Rate:      *ratePerSec,
		Duplicate: *duplicates,
		Seed:      *seed,
		Timeout:   *timeout,
		Settle:    *settle,
		Verbose:   *verbose,
	}
	if _, err := matchsim.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
