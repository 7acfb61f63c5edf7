package auth

import "context"

// StaticVerifier maps raw tokens to identities. Used by tests and wsprobe.
type StaticVerifier map[string]Identity

// Verify looks the token up in the map.
func (v StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	id, ok := v[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

// StaticOwnership maps connection ids to owning user ids. Used by tests and
// wsprobe.
type StaticOwnership map[string]string

// Owns reports whether the map assigns connectionID to userID.
func (o StaticOwnership) Owns(_ context.Context, userID, connectionID string) (bool, error) {
	return o[connectionID] == userID, nil
}
