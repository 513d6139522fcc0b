package book

import (
	"context"
	"log/slog"
	"strings"

	"libraryapi/internal/authz"
	"libraryapi/internal/availability"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Service provides catalog business logic.
type Service struct {
	repo           Repository
	logger         *slog.Logger
	authorRequired bool
}

type Option func(*Service)

// WithAuthorRequired makes author_id mandatory for new copies.
func WithAuthorRequired(required bool) Option {
	return func(s *Service) { s.authorRequired = required }
}

// NewService creates a new book service.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{repo: repo, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create adds one copy. A copy with an ISBN that is already catalogued joins
// that title, so its total and available counts grow by one.
func (s *Service) Create(ctx context.Context, in CreateInput) (Book, error) {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionManageCatalog, authz.AdminOnly); err != nil {
		return Book{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.ISBN != nil && *in.ISBN == "" {
		in.ISBN = nil
	}
	if s.authorRequired && in.AuthorID == nil {
		return Book{}, ErrAuthorRequired
	}

	b, err := s.repo.Create(ctx, in)
	if err != nil {
		return Book{}, err
	}
	s.logger.Info("copy created", slog.Int64("book_id", b.ID), slog.Any("isbn", b.ISBN))
	return b, nil
}

// GetByID returns one copy.
func (s *Service) GetByID(ctx context.Context, id int64) (Book, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByISBN returns the title catalogued under isbn with its copies and counts.
func (s *Service) GetByISBN(ctx context.Context, isbn string) (Title, error) {
	copies, err := s.repo.ListByISBN(ctx, isbn)
	if err != nil {
		return Title{}, err
	}
	if len(copies) == 0 {
		return Title{}, ErrTitleNotFound
	}

	counts := availability.Counts{Total: len(copies)}
	for _, c := range copies {
		if c.IsBorrowed {
			counts.Open++
		}
	}
	first := copies[0]
	return Title{
		ISBN:            isbn,
		Title:           first.Title,
		PublishedYear:   first.PublishedYear,
		AuthorID:        first.AuthorID,
		Description:     first.Description,
		TotalCopies:     counts.Total,
		AvailableCopies: counts.Available(),
		BorrowedCopies:  counts.Borrowed(),
		IsAvailable:     counts.IsAvailable(),
		Copies:          copies,
	}, nil
}

// List returns a page of copies matching the query and the total match count.
func (s *Service) List(ctx context.Context, q Query) ([]Book, int, error) {
	q.Search = strings.TrimSpace(q.Search)
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

// Update applies a patch. Title-level fields propagate to every copy of the
// same ISBN; loans are never touched.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (Book, error) {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionManageCatalog, authz.AdminOnly); err != nil {
		return Book{}, err
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	if p.IsEmpty() {
		return s.repo.GetByID(ctx, id)
	}

	b, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return Book{}, err
	}
	s.logger.Info("copy updated", slog.Int64("book_id", id))
	return b, nil
}

// Delete removes a copy that is not on loan.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionManageCatalog, authz.AdminOnly); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("copy deleted", slog.Int64("book_id", id))
	return nil
}
