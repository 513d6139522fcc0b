package author

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=author

type Repository interface {
	Create(ctx context.Context, in CreateInput) (Author, error)
	GetByID(ctx context.Context, id int64) (Author, error)
	List(ctx context.Context, q Query) ([]Author, int, error)
	Update(ctx context.Context, id int64, p Patch) (Author, error)
	Delete(ctx context.Context, id int64) error
}
