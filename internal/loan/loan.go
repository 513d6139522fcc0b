// Package loan is the borrow/return ledger. A copy is either available or
// held by exactly one open loan; a loan is closed once and never reopened.
package loan

import (
	"time"

	"libraryapi/internal/apperr"
)

var (
	ErrNotFound = apperr.NotFound("transaction not found")
	// ErrAlreadyReturned rejects a second return of the same loan.
	ErrAlreadyReturned = apperr.Conflict("already returned")
	ErrUserNotFound    = apperr.Validation("user does not exist")
	ErrBookNotFound    = apperr.Validation("book does not exist")
	// ErrCopyMoved is returned when the requested copy left its title while
	// the borrow was waiting for locks.
	ErrCopyMoved = apperr.Conflict("book changed while borrowing, try again")
)

// Loan is one borrow of one copy.
type Loan struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	BookID     int64      `json:"book_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	ReturnDate *time.Time `json:"return_date"`
	IsReturned bool       `json:"is_returned"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BorrowInput names the borrower and the requested copy. A nil UserID means
// the caller borrows for themselves.
type BorrowInput struct {
	UserID *int64
	BookID int64
}

// Filter narrows a loan listing. Nil fields do not filter.
type Filter struct {
	UserID     *int64
	BookID     *int64
	IsReturned *bool
	Skip       int
	Limit      int
}
