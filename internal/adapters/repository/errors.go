package repository

import "errors"

// Repository errors.
var (
	ErrNotFound       = errors.New("match not found")
	ErrInvalidSection = errors.New("section data does not match its kind")
	ErrStale          = errors.New("section is older than the stored one")
)
