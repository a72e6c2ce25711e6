// Package auth generates and checks the opaque credentials the service hands
// out: per-player session tokens and per-town update passwords.
package auth

import (
	"crypto/subtle"

	"github.com/google/uuid"
)

// NewSessionToken returns a fresh unguessable session token.
func NewSessionToken() string {
	return uuid.NewString()
}

// NewTownPassword returns a fresh town update password. Two UUIDs keep the
// password space comfortably larger than the token space; the password gates
// destructive operations.
func NewTownPassword() string {
	return uuid.NewString() + uuid.NewString()
}

// SecureCompare reports whether two credentials match without leaking where
// they diverge.
func SecureCompare(expected, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1
}
