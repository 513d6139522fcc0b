package loan

import (
	"context"
	"log/slog"

	"libraryapi/internal/authz"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Service applies the authorization gate around the ledger.
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

func clampPage(f Filter) Filter {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Borrow opens a loan for in.UserID, or for the caller when it is nil.
// Regular users may only borrow for themselves.
func (s *Service) Borrow(ctx context.Context, in BorrowInput) (Loan, error) {
	p := authz.PrincipalFrom(ctx)
	userID := p.UserID
	if in.UserID != nil {
		userID = *in.UserID
	}
	if err := authz.Authorize(p, authz.ActionBorrow, userID); err != nil {
		return Loan{}, err
	}

	l, err := s.repo.Borrow(ctx, userID, in.BookID)
	if err != nil {
		s.logger.Debug("borrow rejected",
			slog.Int64("user_id", userID),
			slog.Int64("book_id", in.BookID),
			slog.Any("error", err),
		)
		return Loan{}, err
	}
	s.logger.Info("loan opened",
		slog.Int64("loan_id", l.ID),
		slog.Int64("user_id", l.UserID),
		slog.Int64("book_id", l.BookID),
		slog.Int64("requested_book_id", in.BookID),
	)
	return l, nil
}

// owned loads a loan and checks the caller may act on it.
func (s *Service) owned(ctx context.Context, id int64, action authz.Action) (Loan, error) {
	p := authz.PrincipalFrom(ctx)
	if !p.Authenticated() {
		return Loan{}, authz.ErrUnauthenticated
	}
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Loan{}, err
	}
	if err := authz.Authorize(p, action, l.UserID); err != nil {
		return Loan{}, err
	}
	return l, nil
}

// Return closes an open loan. Returning a closed loan is an error.
func (s *Service) Return(ctx context.Context, id int64) (Loan, error) {
	if _, err := s.owned(ctx, id, authz.ActionReturn); err != nil {
		return Loan{}, err
	}
	l, err := s.repo.Return(ctx, id)
	if err != nil {
		return Loan{}, err
	}
	s.logger.Info("loan closed", slog.Int64("loan_id", l.ID), slog.Int64("book_id", l.BookID))
	return l, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Loan, error) {
	return s.owned(ctx, id, authz.ActionReadLoan)
}

// ListByUser lists the loans of one user; users may list their own.
func (s *Service) ListByUser(ctx context.Context, userID int64, f Filter) ([]Loan, int, error) {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionListLoans, userID); err != nil {
		return nil, 0, err
	}
	f = clampPage(f)
	f.UserID = &userID
	f.BookID = nil
	return s.repo.List(ctx, f)
}

// ListByBook lists the loans of one copy. Admin only.
func (s *Service) ListByBook(ctx context.Context, bookID int64, f Filter) ([]Loan, int, error) {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionListLoans, authz.AdminOnly); err != nil {
		return nil, 0, err
	}
	f = clampPage(f)
	f.BookID = &bookID
	f.UserID = nil
	return s.repo.List(ctx, f)
}

// List lists every loan. Admin only.
func (s *Service) List(ctx context.Context, f Filter) ([]Loan, int, error) {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionListLoans, authz.AdminOnly); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, clampPage(f))
}

// Delete removes a loan record regardless of its state. Admin only.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := authz.Authorize(authz.PrincipalFrom(ctx), authz.ActionDeleteLoan, authz.AdminOnly); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Warn("loan deleted", slog.Int64("loan_id", id))
	return nil
}
