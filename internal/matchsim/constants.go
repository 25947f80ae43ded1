package matchsim

import "time"

// Defaults applied by Run when the Config leaves a field zero.
const (
	DefaultMinutes = 90
	DefaultVoters  = 200
	DefaultWorkers = 8
	DefaultTimeout = 10 * time.Second
	DefaultSettle  = 10 * time.Second
)

// Submission retry tuning for 429 responses.
const (
	maxAttempts  = 5
	retryBackoff = 50 * time.Millisecond
	pollInterval = 100 * time.Millisecond
	windowSize   = 10
)

// Submission outcomes.
const (
	resultAccepted  = "accepted"
	resultDuplicate = "duplicate"
	resultThrottled = "throttled"
	resultFailed    = "failed"
)

const percentageMultiplier = 100
