package codec

import "errors"

// Sentinel kinds for codec errors.
var (
	ErrDecode = errors.New("snapshot document could not be decoded")
)
