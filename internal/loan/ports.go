package loan

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=loan

// Repository persists loans. Borrow and Return are atomic with respect to
// concurrent callers on the same copy or loan.
type Repository interface {
	Borrow(ctx context.Context, userID, bookID int64) (Loan, error)
	Return(ctx context.Context, id int64) (Loan, error)
	GetByID(ctx context.Context, id int64) (Loan, error)
	List(ctx context.Context, f Filter) ([]Loan, int, error)
	Delete(ctx context.Context, id int64) error
}
