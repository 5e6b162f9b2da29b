package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msmm/aitools/internal/models"
	"github.com/msmm/aitools/internal/store"
	"github.com/msmm/aitools/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// DefaultSessionTTL is how long an issued session stays valid.
const DefaultSessionTTL = 24 * time.Hour

// Sessions issues, resolves and revokes server-side sessions.
type Sessions struct {
	store store.SessionStore
	ttl   time.Duration
	now   func() time.Time
}

// SessionsOption configures Sessions.
type SessionsOption func(*Sessions)

// WithClock replaces time.Now, used by tests to drive expiry.
func WithClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) {
		s.now = now
	}
}

// WithTTL overrides DefaultSessionTTL.
func WithTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewSessions creates a Sessions backed by the given session store.
func NewSessions(st store.SessionStore, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		store: st,
		ttl:   DefaultSessionTTL,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TTL returns the lifetime given to new sessions.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue creates a new session for the identity.
func (s *Sessions) Issue(ctx context.Context, id Identity) (*models.Session, error) {
	token, err := NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	now := s.now().UTC()
	session := &models.Session{
		SessionID: token,
		UserID:    id.UserID,
		Username:  id.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.store.Create(ctx, session); err != nil {
		log.Error().Err(err).Str("op", "issue").Str("username", id.Username).Msg("failed to create session")
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	telemetry.GetMetrics().SessionsIssued.Add(ctx, 1)

	return session, nil
}

// Resolve returns the live session for token. A session found past its expiry
// is deleted and reported as store.ErrSessionExpired.
func (s *Sessions) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, store.ErrSessionNotFound
	}

	session, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if session.ExpiredAt(s.now()) {
		if err := s.store.Delete(ctx, token); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			log.Warn().Err(err).Str("op", "resolve").Str("username", session.Username).Msg("failed to delete expired session")
		}

		telemetry.GetMetrics().SessionsExpired.Add(ctx, 1)

		return nil, store.ErrSessionExpired
	}

	return session, nil
}

// Revoke deletes the session for token. Unknown tokens are ignored.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := s.store.Delete(ctx, token); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	telemetry.GetMetrics().SessionsRevoked.Add(ctx, 1)

	return nil
}

// Sweep deletes every session that has expired and returns how many were removed.
func (s *Sessions) Sweep(ctx context.Context) (int, error) {
	count, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if count > 0 {
		telemetry.GetMetrics().SessionsSwept.Add(ctx, int64(count))
	}

	return count, nil
}
