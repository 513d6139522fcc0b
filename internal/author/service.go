package author

import (
	"context"
	"log/slog"
	"strings"

	"libraryapi/internal/authz"
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

func (s *Service) Create(ctx context.Context, in CreateInput) (Author, error) {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionManageAuthors, authz.AdminOnly); err != nil {
		return Author{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	a, err := s.repo.Create(ctx, in)
	if err != nil {
		return Author{}, err
	}
	s.logger.Info("author created", slog.Int64("author_id", a.ID))
	return a, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (Author, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, q Query) ([]Author, int, error) {
	q.Search = strings.TrimSpace(q.Search)
	q.Nationality = strings.TrimSpace(q.Nationality)
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

func (s *Service) Update(ctx context.Context, id int64, p Patch) (Author, error) {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionManageAuthors, authz.AdminOnly); err != nil {
		return Author{}, err
	}
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		p.Name = &n
	}
	if p.IsEmpty() {
		return s.repo.GetByID(ctx, id)
	}
	a, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return Author{}, err
	}
	s.logger.Info("author updated", slog.Int64("author_id", id))
	return a, nil
}

// Delete removes an author that no book references.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionManageAuthors, authz.AdminOnly); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("author deleted", slog.Int64("author_id", id))
	return nil
}
