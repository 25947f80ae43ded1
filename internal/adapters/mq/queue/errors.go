package queue

import "errors"

// Enqueue failures.
var (
	ErrFull   = errors.New("queue is full")
	ErrClosed = errors.New("queue is closed")
)
