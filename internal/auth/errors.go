package auth

import (
	"errors"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("invalid credentials")
	ErrConflict        = errors.New("user already exists")
	ErrNotFound        = errors.New("not found")
	ErrStorage         = errors.New("storage failure")
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID   int64
	Username string
}
