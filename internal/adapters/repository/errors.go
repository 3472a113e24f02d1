package repository

import (
	"errors"

	"github.com/okian/studyroom/internal/domain/presence"
)

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = presence.ErrSessionNotFound
	ErrAlreadyExists = errors.New("session already exists")
	ErrNoOpenStay    = errors.New("no open stay")
	ErrInvalid       = errors.New("invalid session document")
)
