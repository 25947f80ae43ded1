// Package matchsim simulates the vote feed of a live match against a running
// consensus service and verifies the view it serves.
package matchsim

import (
	"encoding/json"
	"time"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL   string        // Base URL of the service
	MatchID   string        // Match to simulate; generated when empty
	Minutes   int           // Match minutes to simulate
	Voters    int           // Votes cast per minute and kind
	Workers   int           // Concurrent HTTP senders
	Rate      float64       // Snapshots per second; 0 is unlimited
	Duplicate float64       // Fraction of snapshots re-sent with the same id
	Seed      uint64        // Random seed; 0 uses the clock
	Timeout   time.Duration // HTTP request timeout
	Settle    time.Duration // How long to wait for the view to converge
	Verbose   bool          // Log every non-accepted response
}

// Snapshot is the body of POST /snapshots.
type Snapshot struct {
	ID      string          `json:"id"`
	MatchID string          `json:"matchId"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// AckResponse is the body returned by POST /snapshots.
type AckResponse struct {
	Status     string `json:"status"`
	Duplicate  bool   `json:"duplicate"`
	SnapshotID string `json:"snapshotId"`
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Duplicates int
	Throttled  int
	Failed     int
	Verified   int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
