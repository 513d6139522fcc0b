package user

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=user

type Repository interface {
	Create(ctx context.Context, u NewUser) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	List(ctx context.Context, q Query) ([]User, int, error)
	Update(ctx context.Context, id int64, p Patch) (User, error)
	SetPassword(ctx context.Context, id int64, hash string) error
	SetRole(ctx context.Context, id int64, role string) (User, error)
	Delete(ctx context.Context, id int64) error
}
