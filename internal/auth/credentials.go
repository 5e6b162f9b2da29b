package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/msmm/aitools/internal/models"
	"github.com/msmm/aitools/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const MaxUsernameLength = 50

// Credentials provisions and verifies username/password pairs.
type Credentials struct {
	users store.UserStore
	cost  int
	now   func() time.Time

	// compared against when the user does not exist so both failure paths cost the same
	dummyHash string
}

// CredentialsOption configures Credentials.
type CredentialsOption func(*Credentials)

// WithBcryptCost overrides the bcrypt work factor, tests use bcrypt.MinCost.
func WithBcryptCost(cost int) CredentialsOption {
	return func(c *Credentials) {
		c.cost = cost
	}
}

// NewCredentials creates a Credentials backed by the given user store.
func NewCredentials(users store.UserStore, opts ...CredentialsOption) *Credentials {
	c := &Credentials{
		users: users,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	// a fixed input cannot fail to hash
	c.dummyHash, _ = HashPassword("not-a-real-password", c.cost)

	return c
}

// Provision creates a user with a freshly hashed password.
func (c *Credentials) Provision(ctx context.Context, username, password string) (*models.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password, c.cost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
	}

	if err := c.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserAlreadyExists) {
			return nil, ErrConflict
		}
		log.Error().Err(err).Str("op", "provision").Str("username", username).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	log.Info().Str("op", "provision").Str("username", username).Int64("user_id", user.UserID).Msg("user provisioned")

	return user, nil
}

// Verify checks the password for username and records the login.
// Unknown users and wrong passwords both return ErrUnauthenticated.
func (c *Credentials) Verify(ctx context.Context, username, password string) (*Identity, error) {
	if username == "" || password == "" {
		return nil, ErrUnauthenticated
	}

	user, err := c.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			CheckPassword(c.dummyHash, password)
			return nil, ErrUnauthenticated
		}
		log.Error().Err(err).Str("op", "verify").Str("username", username).Msg("failed to load user")
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrUnauthenticated
	}

	if err := c.users.TouchLastLogin(ctx, user.UserID, c.now().UTC()); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// deleted between the lookup and the touch
			return nil, ErrUnauthenticated
		}
		log.Error().Err(err).Str("op", "verify").Str("username", username).Msg("failed to record last login")
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return &Identity{UserID: user.UserID, Username: user.Username}, nil
}

// Remove deletes a user together with all of their sessions.
func (c *Credentials) Remove(ctx context.Context, username string) error {
	if err := c.users.Delete(ctx, username); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Str("op", "remove").Str("username", username).Msg("failed to delete user")
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	log.Info().Str("op", "remove").Str("username", username).Msg("user removed")

	return nil
}

// List returns every user ordered by username.
func (c *Credentials) List(ctx context.Context) ([]*models.User, error) {
	users, err := c.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return users, nil
}

func validateCredentials(username, password string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return fmt.Errorf("%w: username is required", ErrValidation)
	case username != strings.TrimSpace(username):
		return fmt.Errorf("%w: username must not have leading or trailing spaces", ErrValidation)
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return fmt.Errorf("%w: username must be at most %d characters", ErrValidation, MaxUsernameLength)
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	case len(password) > MaxPasswordBytes:
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, MaxPasswordBytes)
	}
	return nil
}
