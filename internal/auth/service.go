package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"libraryapi/internal/authz"
	"libraryapi/internal/platform/crypto"
	"libraryapi/internal/user"
)

const TokenType = "bearer"

// TokenResponse is returned by login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	User        user.User `json:"user"`
}

type Service struct {
	secret      string
	ttl         time.Duration
	users       Authenticator
	revocations RevocationStore
	logger      *slog.Logger
}

func NewService(secret string, ttl time.Duration, users Authenticator, revocations RevocationStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		secret:      secret,
		ttl:         ttl,
		users:       users,
		revocations: revocations,
		logger:      logger,
	}
}

// Login exchanges credentials for an access token.
func (s *Service) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	u, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return TokenResponse{}, err
	}

	token, _, err := crypto.GenerateToken(s.secret, u.ID, u.Role, s.ttl)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("generate token: %w", err)
	}
	s.logger.Info("user logged in", slog.Int64("user_id", u.ID))

	return TokenResponse{
		AccessToken: token,
		TokenType:   TokenType,
		ExpiresIn:   int(s.ttl.Seconds()),
		User:        u,
	}, nil
}

// Logout revokes the token the caller authenticated with.
func (s *Service) Logout(ctx context.Context, claims *crypto.Claims) error {
	p := authz.PrincipalFrom(ctx)
	if !p.Authenticated() || claims == nil || claims.ID == "" {
		return authz.ErrUnauthenticated
	}

	expiresAt := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.revocations.Revoke(ctx, claims.ID, p.UserID, expiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.Info("user logged out", slog.Int64("user_id", p.UserID))
	return nil
}

// IsRevoked lets the auth middleware reject logged-out tokens.
func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.revocations.IsRevoked(ctx, jti)
}

// PurgeExpired drops revocations of tokens that have expired on their own.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.revocations.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("purged expired revocations", slog.Int64("count", n))
	}
	return n, nil
}

// RunPurger calls PurgeExpired every interval until ctx is done.
func (s *Service) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeExpired(ctx); err != nil {
				s.logger.Error("purge revoked tokens", slog.Any("error", err))
			}
		}
	}
}
