package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresVerifier verifies bearer tokens against the dashboard's auth_tokens
// table.
type PostgresVerifier struct {
	pool *pgxpool.Pool
}

// NewPostgresVerifier creates a verifier backed by the given pool.
func NewPostgresVerifier(pool *pgxpool.Pool) *PostgresVerifier {
	return &PostgresVerifier{pool: pool}
}

// Verify looks up the token by hash and checks expiry.
func (v *PostgresVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	var userID string
	var expiresAt time.Time
	err := v.pool.QueryRow(ctx,
		`SELECT user_id, expires_at FROM auth_tokens WHERE token_hash = $1`,
		HashToken(token),
	).Scan(&userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, fmt.Errorf("query token: %w", err)
	}

	if time.Now().After(expiresAt) {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: userID}, nil
}

// PostgresOwnership checks broker-connection ownership against the dashboard's
// broker_connections table.
type PostgresOwnership struct {
	pool *pgxpool.Pool
}

// NewPostgresOwnership creates an ownership store backed by the given pool.
func NewPostgresOwnership(pool *pgxpool.Pool) *PostgresOwnership {
	return &PostgresOwnership{pool: pool}
}

// Owns reports whether connectionID is a persisted broker connection belonging
// to userID.
func (o *PostgresOwnership) Owns(ctx context.Context, userID, connectionID string) (bool, error) {
	var owns bool
	err := o.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM broker_connections WHERE id = $1 AND user_id = $2)`,
		connectionID, userID,
	).Scan(&owns)
	if err != nil {
		return false, fmt.Errorf("query ownership: %w", err)
	}
	return owns, nil
}
