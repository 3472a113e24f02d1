package service

import (
	"errors"

	"github.com/okian/studyroom/internal/adapters/repository"
)

// Sentinel kinds for service errors.
var (
	ErrNotFound         = repository.ErrNotFound
	ErrAlreadyExists    = repository.ErrAlreadyExists
	ErrNoOpenStay       = repository.ErrNoOpenStay
	ErrInvalidSession   = errors.New("invalid session")
	ErrInvalidResult    = errors.New("invalid result item")
	ErrInvalidUID       = errors.New("invalid uid")
	ErrSessionNotOver   = errors.New("session is not over")
	ErrBackpressure     = errors.New("finalize queue full")
	ErrNotStarted       = errors.New("service not started")
	ErrAlreadyFinalized = errors.New("session already finalized")
)
