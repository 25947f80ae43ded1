package service

import "errors"

var (
	// ErrUnknownKind is returned by Engine.Compute for a snapshot kind it cannot aggregate.
	ErrUnknownKind = errors.New("unknown snapshot kind")

	// ErrNotStarted is returned by operations that need the running pipeline.
	ErrNotStarted = errors.New("service not started")
)
