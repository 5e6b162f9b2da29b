package auth

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

const tokenBytes = 32

// NewSessionToken returns a base58 encoded token built from 32 random bytes.
func NewSessionToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base58.Encode(buf), nil
}
