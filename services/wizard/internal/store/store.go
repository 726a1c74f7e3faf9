package store

import (
	"context"
	"errors"
	"time"

	"marinehub/pkg/wizard"
)

var ErrSessionNotFound = errors.New("wizard session not found")

// Session is one wizard run.
type Session struct {
	ID        string            `json:"id"`
	State     *wizard.FormState `json:"state"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// SessionStore persists wizard sessions with expiry.
type SessionStore interface {
	// Create assigns an ID and stores s.
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Save overwrites an existing session and refreshes its expiry.
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
