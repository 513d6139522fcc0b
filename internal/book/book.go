package book

import (
	"time"

	"libraryapi/internal/apperr"
)

var (
	// ErrNotFound is returned when a copy is not found.
	ErrNotFound = apperr.NotFound("book not found")
	// ErrTitleNotFound is returned when no copy carries the requested ISBN.
	ErrTitleNotFound = apperr.NotFound("no book with this isbn")
	// ErrCurrentlyBorrowed blocks deleting a copy with an open loan.
	ErrCurrentlyBorrowed = apperr.Conflict("book currently borrowed")
	ErrAuthorNotFound    = apperr.Validation("author does not exist")
	ErrAuthorRequired    = apperr.Validation("author_id is required")
	// ErrTitleMismatch rejects a copy whose details differ from the title
	// already catalogued under the same ISBN.
	ErrTitleMismatch = apperr.Validation("isbn is already catalogued with different title details")
)

// Book is one physical copy. Copies of the same title share an ISBN.
type Book struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	ISBN          *string   `json:"isbn"`
	PublishedYear *int      `json:"published_year"`
	AuthorID      *int64    `json:"author_id"`
	Description   *string   `json:"description"`
	IsBorrowed    bool      `json:"is_borrowed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Title is the set of copies sharing an ISBN.
type Title struct {
	ISBN            string  `json:"isbn"`
	Title           string  `json:"title"`
	PublishedYear   *int    `json:"published_year"`
	AuthorID        *int64  `json:"author_id"`
	Description     *string `json:"description"`
	TotalCopies     int     `json:"total_copies"`
	AvailableCopies int     `json:"available_copies"`
	BorrowedCopies  int     `json:"borrowed_copies"`
	IsAvailable     bool    `json:"is_available"`
	Copies          []Book  `json:"copies"`
}

// CreateInput describes a new copy.
type CreateInput struct {
	Title         string
	ISBN          *string
	PublishedYear *int
	AuthorID      *int64
	Description   *string
}

// Patch holds the fields to change; nil fields are left as they are.
type Patch struct {
	Title         *string
	ISBN          *string
	PublishedYear *int
	AuthorID      *int64
	Description   *string
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.ISBN == nil && p.PublishedYear == nil && p.AuthorID == nil && p.Description == nil
}

// Query defines filters and pagination for listing copies. Filters combine with AND.
type Query struct {
	Search        string
	AuthorID      *int64
	AvailableOnly bool
	Skip          int
	Limit         int
}

// sameTitle reports whether the title-level fields of in agree with b. Nil
// optional fields in the input agree with anything.
func sameTitle(b Book, title string, year *int, authorID *int64, desc *string) bool {
	if b.Title != title {
		return false
	}
	if year != nil && (b.PublishedYear == nil || *b.PublishedYear != *year) {
		return false
	}
	if authorID != nil && (b.AuthorID == nil || *b.AuthorID != *authorID) {
		return false
	}
	if desc != nil && (b.Description == nil || *b.Description != *desc) {
		return false
	}
	return true
}
