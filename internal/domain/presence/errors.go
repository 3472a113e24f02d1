package presence

import "errors"

// Sentinel kinds for presence errors.
var (
	// ErrSessionNotFound is returned by a SessionReader for unknown sessions.
	ErrSessionNotFound = errors.New("session not found")
)
