package author

import (
	"time"

	"libraryapi/internal/apperr"
)

var (
	ErrNotFound   = apperr.NotFound("author not found")
	ErrEmailTaken = apperr.Conflict("author with this email already exists")
	// ErrHasBooks blocks deleting an author that books still reference.
	ErrHasBooks = apperr.Conflict("author has books in the catalog")
)

type Author struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       *string    `json:"email"`
	Bio         *string    `json:"bio"`
	BirthDate   *time.Time `json:"birth_date"`
	Nationality *string    `json:"nationality"`
	Website     *string    `json:"website"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CreateInput struct {
	Name        string
	Email       *string
	Bio         *string
	BirthDate   *time.Time
	Nationality *string
	Website     *string
}

// Patch holds the fields to change; nil fields are left as they are.
type Patch struct {
	Name        *string
	Email       *string
	Bio         *string
	BirthDate   *time.Time
	Nationality *string
	Website     *string
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Bio == nil && p.BirthDate == nil && p.Nationality == nil && p.Website == nil
}

// Query filters the author listing. Search matches name or email.
type Query struct {
	Search      string
	Nationality string
	Skip        int
	Limit       int
}
