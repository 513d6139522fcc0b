package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"libraryapi/internal/apperr"
	"libraryapi/internal/authz"
	"libraryapi/internal/platform/crypto"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

// Register creates a regular account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	return s.create(ctx, in, authz.RoleRegular)
}

// CreateAdmin creates an administrator. It is meant for operator tooling
// with direct database access and is not exposed over HTTP.
func (s *Service) CreateAdmin(ctx context.Context, in RegisterInput) (User, error) {
	return s.create(ctx, in, authz.RoleAdmin)
}

func (s *Service) create(ctx context.Context, in RegisterInput, role string) (User, error) {
	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooShort) {
			return User{}, apperr.Validation(err.Error())
		}
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.repo.Create(ctx, NewUser{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		FullName:     in.FullName,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user created", slog.Int64("user_id", u.ID), slog.String("role", u.Role))
	return u, nil
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !u.IsActive || !crypto.VerifyPassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context) (User, error) {
	p := authz.PrincipalFrom(ctx)
	if !p.Authenticated() {
		return User{}, authz.ErrUnauthenticated
	}
	return s.repo.GetByID(ctx, p.UserID)
}

// GetByID returns an account to its owner or an admin.
func (s *Service) GetByID(ctx context.Context, id int64) (User, error) {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionReadUser, id); err != nil {
		return User{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// CurrentRole reloads the account behind a verified token. Deactivated and
// deleted accounts get ErrInactive.
func (s *Service) CurrentRole(ctx context.Context, userID int64) (string, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInactive
		}
		return "", err
	}
	if !u.IsActive {
		return "", ErrInactive
	}
	return u.Role, nil
}

// List returns accounts to admins.
func (s *Service) List(ctx context.Context, q Query) ([]User, int, error) {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionManageUsers, authz.AdminOnly); err != nil {
		return nil, 0, err
	}
	if q.Role != "" && !validRole(q.Role) {
		return nil, 0, ErrInvalidRole
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return s.repo.List(ctx, q)
}

// Update changes a profile. Owners may edit their own email and full name;
// activation is left to admins.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (User, error) {
	caller := authz.PrincipalFrom(ctx)
	if err := authz.Authorize(caller, authz.ActionUpdateUser, id); err != nil {
		return User{}, err
	}
	if p.IsActive != nil && !caller.IsAdmin() {
		return User{}, authz.ErrDenied
	}
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		p.Email = &e
	}
	if p.IsEmpty() {
		return s.repo.GetByID(ctx, id)
	}
	u, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user updated", slog.Int64("user_id", id), slog.Int64("by", caller.UserID))
	return u, nil
}

// ChangePassword replaces a password. Owners must present the current one;
// admins may reset any account without it.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	caller := authz.PrincipalFrom(ctx)
	if err := authz.Authorize(caller, authz.ActionUpdateUser, id); err != nil {
		return err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !caller.IsAdmin() && !crypto.VerifyPassword(u.PasswordHash, current) {
		return ErrWrongPassword
	}

	hash, err := crypto.HashPassword(next)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooShort) {
			return apperr.Validation(err.Error())
		}
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPassword(ctx, id, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", slog.Int64("user_id", id), slog.Int64("by", caller.UserID))
	return nil
}

// SetRole grants or withdraws admin rights.
func (s *Service) SetRole(ctx context.Context, id int64, role string) (User, error) {
	caller := authz.PrincipalFrom(ctx)
	if err := authz.Authorize(caller, authz.ActionManageUsers, authz.AdminOnly); err != nil {
		return User{}, err
	}
	if !validRole(role) {
		return User{}, ErrInvalidRole
	}
	u, err := s.repo.SetRole(ctx, id, role)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user role changed", slog.Int64("user_id", id), slog.String("role", role), slog.Int64("by", caller.UserID))
	return u, nil
}

// Delete removes an account with no open loans. Its returned loans go with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	caller := authz.PrincipalFrom(ctx)
	if err := authz.Authorize(caller, authz.ActionManageUsers, authz.AdminOnly); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.Int64("user_id", id), slog.Int64("by", caller.UserID))
	return nil
}

func validRole(role string) bool {
	return role == authz.RoleAdmin || role == authz.RoleRegular
}
