package models

import (
	"time"
)

// Session represents a user's authenticated session.
// The session ID is stored in an opaque cookie, while all session data lives server-side.
type Session struct {
	SessionID string // random token, this is the only value stored in the cookie
	UserID    int64  // Who is logged in
	Username  string // Denormalized so requests don't need a users lookup

	CreatedAt time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the session is past its expiry at the given instant.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
