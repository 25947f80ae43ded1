package matchsim

import (
	"io"
)

// ShowHelp prints usage information for the match simulator.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `11Votes Match Simulator
=======================

Simulates the vote feed of a live match against a running consensus service,
then checks that every section of the served view matches a local computation
over the final snapshots. Verification assumes the service runs with the
default momentum parameters.

Usage:
  go run ./cmd/match-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -match string
        Match id (default: generated)
  -minutes int
        Match minutes to simulate (default 90)
  -voters int
        Votes per minute and kind (default 200)
  -workers int
        Concurrent senders (default 8)
  -rate float
        Snapshots per second, 0 for unlimited (default 0)
  -duplicates float
        Fraction of snapshots re-sent with the same id (default 0.05)
  -seed uint
        Random seed (default: clock)
  -timeout duration
        HTTP request timeout (default 10s)
  -settle duration
        How long to wait for the view to converge (default 10s)
  -log-format string
        text or json (default "text")
  -verbose
        Log every snapshot that was not accepted
  -help
        Show this help message

Examples:
  go run ./cmd/match-sim -minutes 45 -voters 1000 -workers 32
  go run ./cmd/match-sim -url http://localhost:8080 -seed 42 -verbose
`)
}
