// Package auth provides bearer-token verification and broker-connection
// ownership checks for the relay endpoints.
//
// The relay consumes both concerns through interfaces; the dashboard's
// Postgres-backed implementations live here alongside static in-memory
// versions used by tests and tooling.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Errors
var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Identity is the authenticated principal behind a bearer token.
type Identity struct {
	UserID string
}

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// OwnershipStore answers whether a user owns a broker connection record.
type OwnershipStore interface {
	Owns(ctx context.Context, userID, connectionID string) (bool, error)
}

// HashToken returns the hex-encoded SHA-256 digest of a bearer token.
// Tokens are stored hashed; raw tokens never touch the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
