package results

import "errors"

// Sentinel kinds for result cache errors.
var (
	// ErrStorage marks failures of the underlying key-value store.
	ErrStorage = errors.New("result cache storage failed")
)
