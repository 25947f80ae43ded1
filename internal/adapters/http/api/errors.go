package api

import (
	"errors"
	"fmt"
)

// API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrUnavailable  = errors.New("service unavailable")
	ErrUnknownView  = errors.New("unknown section")
)

// wrap tags err with the handler op and an API error kind.
func wrap(op string, kind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
