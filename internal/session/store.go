// Package session keeps server-side login sessions keyed by an opaque
// cookie token.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown, expired or deleted sessions.
var ErrNotFound = errors.New("session not found")

// TokenBytes is the entropy of a session token.
const TokenBytes = 32

// DefaultTTL applies when a store is built with a non-positive TTL.
const DefaultTTL = 24 * time.Hour

// Store maps session tokens to user ids. Implementations only ever see the
// token's hash at rest.
type Store interface {
	// Create starts a session for userID and returns the token to hand the client.
	Create(ctx context.Context, userID int64) (string, error)
	// Get resolves a token and extends its lifetime.
	Get(ctx context.Context, token string) (int64, error)
	// Delete ends the session. Unknown tokens are not an error.
	Delete(ctx context.Context, token string) error
}

func newToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
