package vote

import "errors"

// Sentinel kinds for vote parsing errors.
var (
	ErrNotObject = errors.New("vote document is not a JSON object")
)
