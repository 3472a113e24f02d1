// Package repository persists sessions, participants and stays.
package repository

import (
	"context"
	"time"

	"github.com/okian/studyroom/internal/domain/model"
)

// SessionStore provides read/write access to session documents.
type SessionStore interface {
	// CreateSession stores a new session with its initial participants.
	// Returns ErrAlreadyExists if the id is taken.
	CreateSession(ctx context.Context, s model.Session) error

	// GetSession returns ErrNotFound if the session is unknown.
	GetSession(ctx context.Context, id string) (model.Session, error)

	// Start records the session start instant unless one is already set.
	Start(ctx context.Context, id string, at time.Time) error

	// Join adds the participant if needed and opens a stay at at.
	// Joining while a stay is open is a no-op.
	Join(ctx context.Context, id string, p model.Participant, at time.Time) error

	// Leave closes the participant's open stay at at.
	// Returns ErrNoOpenStay if the participant is not present.
	Leave(ctx context.Context, id, uid string, at time.Time) error

	// ListStays returns every stay of uid in the session, oldest first.
	ListStays(ctx context.Context, id, uid string) ([]model.StayInterval, error)

	// ForceEnd records an early termination. An earlier force-end is kept.
	ForceEnd(ctx context.Context, id string, at time.Time) error

	// MarkFinalized records when results were produced.
	MarkFinalized(ctx context.Context, id string, at time.Time) error
}
