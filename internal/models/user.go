package models

import "time"

// User is an account that can log in with a username and password.
type User struct {
	UserID       int64  // system-assigned identity
	Username     string // unique
	PasswordHash string // bcrypt digest, never leaves the server

	CreatedAt time.Time
	LastLogin *time.Time // nil until the first successful login
}
