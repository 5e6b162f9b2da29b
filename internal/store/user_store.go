package store

import (
	"context"
	"errors"
	"time"

	"github.com/msmm/aitools/internal/models"
)

// Sentinel errors for user store operations
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserStore defines the interface for credential storage operations.
type UserStore interface {
	// Create inserts a new user and fills in the assigned UserID and CreatedAt.
	// Returns ErrUserAlreadyExists if the username is taken.
	Create(ctx context.Context, user *models.User) error

	// GetByUsername retrieves a user by username.
	// Returns ErrUserNotFound if no such user exists.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// TouchLastLogin records a successful login.
	// Returns ErrUserNotFound if the user was deleted in the meantime.
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error

	// Delete removes a user by username. Sessions owned by the user are removed with it.
	// Returns ErrUserNotFound if no such user exists.
	Delete(ctx context.Context, username string) error

	// List returns all users ordered by username.
	List(ctx context.Context) ([]*models.User, error)
}
