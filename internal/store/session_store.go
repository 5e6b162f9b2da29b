package store

import (
	"context"
	"errors"
	"time"

	"github.com/msmm/aitools/internal/models"
)

// Sentinel errors for session store operations
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionStore defines the interface for server-side session storage.
// Expiry is not enforced here: Get returns the row as stored and callers decide
// whether it is still valid.
type SessionStore interface {
	// Create inserts a new session. The session ID is the primary key, so a
	// duplicate ID fails instead of overwriting.
	Create(ctx context.Context, session *models.Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, sessionID string) (*models.Session, error)

	// Delete deletes a session by ID (logout).
	// Returns ErrSessionNotFound if the session doesn't exist.
	Delete(ctx context.Context, sessionID string) error

	// DeleteByUser deletes all sessions for a user (logout everywhere).
	DeleteByUser(ctx context.Context, userID int64) (int, error)

	// DeleteExpired deletes all sessions that expired before the given instant (cleanup job).
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
