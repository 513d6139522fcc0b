package book

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=book

// Repository defines the contract for book data storage. Every mutating
// method runs in its own transaction.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (Book, error)
	GetByID(ctx context.Context, id int64) (Book, error)
	ListByISBN(ctx context.Context, isbn string) ([]Book, error)
	List(ctx context.Context, q Query) ([]Book, int, error)
	Update(ctx context.Context, id int64, p Patch) (Book, error)
	Delete(ctx context.Context, id int64) error
}
