package auth

import (
	"context"
	"time"

	"libraryapi/internal/user"
)

// Authenticator verifies credentials; *user.Service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (user.User, error)
}

// RevocationStore remembers logged-out token ids until they would have
// expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, userID int64, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpired(ctx context.Context) (int64, error)
}
