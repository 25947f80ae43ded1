package worker

import (
	"time"

	"github.com/elevenvotes/consensus/pkg/logger"
)

// Option configures a Pool.
type Option func(*Pool)

// WithName sets the prefix used to name each worker's logger.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for workers to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.shutdownTimeout = d
		}
	}
}
