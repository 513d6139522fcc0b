// Package availability derives how many copies of a title exist and how many
// of them can be lent right now. Nothing is cached: every call counts the
// persisted copy and loan rows, so it can run inside the caller's
// transaction after the caller has locked the copy rows.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libraryapi/internal/apperr"

	"github.com/jackc/pgx/v5"
)

// ErrNoAvailableCopies rejects a borrow when every copy of the title is out.
var ErrNoAvailableCopies = apperr.Conflict("no available copies")

// ErrBookNotFound is returned by ForBook for an unknown copy id.
var ErrBookNotFound = apperr.NotFound("book not found")

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Counts is a snapshot of one title group.
type Counts struct {
	Total int
	Open  int
}

// Available is Total minus open loans, clamped to [0, Total].
func (c Counts) Available() int {
	avail := c.Total - c.Open
	if avail < 0 {
		return 0
	}
	if avail > c.Total {
		return c.Total
	}
	return avail
}

// Borrowed is the number of copies currently out.
func (c Counts) Borrowed() int { return c.Total - c.Available() }

func (c Counts) IsAvailable() bool { return c.Available() > 0 }

// Admit is the borrow precondition.
func Admit(c Counts) error {
	if !c.IsAvailable() {
		return ErrNoAvailableCopies
	}
	return nil
}

const countByISBN = `
	SELECT COUNT(*),
	       COUNT(*) FILTER (WHERE EXISTS (
	           SELECT 1 FROM loans l WHERE l.book_id = b.id AND NOT l.is_returned))
	FROM books b
	WHERE b.isbn = $1`

const countByID = `
	SELECT COUNT(*),
	       COUNT(*) FILTER (WHERE EXISTS (
	           SELECT 1 FROM loans l WHERE l.book_id = b.id AND NOT l.is_returned))
	FROM books b
	WHERE b.id = $1`

// Count returns the raw counts for isbn. An unknown ISBN yields Total 0.
func Count(ctx context.Context, q Querier, isbn string) (Counts, error) {
	var c Counts
	if err := q.QueryRow(ctx, countByISBN, isbn).Scan(&c.Total, &c.Open); err != nil {
		return Counts{}, fmt.Errorf("count copies of %q: %w", isbn, err)
	}
	return c, nil
}

// CountCopy returns the counts of a copy that has no ISBN and therefore
// forms a title group on its own.
func CountCopy(ctx context.Context, q Querier, bookID int64) (Counts, error) {
	var c Counts
	if err := q.QueryRow(ctx, countByID, bookID).Scan(&c.Total, &c.Open); err != nil {
		return Counts{}, fmt.Errorf("count copy %d: %w", bookID, err)
	}
	return c, nil
}

// Report is the availability of the title a copy belongs to.
type Report struct {
	BookID          int64   `json:"book_id"`
	Title           string  `json:"title"`
	ISBN            *string `json:"isbn,omitempty"`
	TotalCopies     int     `json:"total_copies"`
	AvailableCopies int     `json:"available_copies"`
	BorrowedCopies  int     `json:"borrowed_copies"`
	IsAvailable     bool    `json:"is_available"`
}

func newReport(bookID int64, title string, isbn *string, c Counts) Report {
	return Report{
		BookID:          bookID,
		Title:           title,
		ISBN:            isbn,
		TotalCopies:     c.Total,
		AvailableCopies: c.Available(),
		BorrowedCopies:  c.Borrowed(),
		IsAvailable:     c.IsAvailable(),
	}
}

// Engine answers availability questions against the pool.
type Engine struct {
	db      Querier
	timeout time.Duration
}

func NewEngine(db Querier, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Engine{db: db, timeout: timeout}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// countsForTitle applies the legacy fallback: an ISBN with no rows counts as
// one available copy. The borrow path never relies on it because it locks
// and counts existing rows only.
func (e *Engine) countsForTitle(ctx context.Context, isbn string) (Counts, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	c, err := Count(ctx, e.db, isbn)
	if err != nil {
		return Counts{}, err
	}
	if c.Total == 0 {
		c.Total = 1
	}
	return c, nil
}

// TotalCopies counts the copies sharing isbn; unknown ISBNs report 1.
func (e *Engine) TotalCopies(ctx context.Context, isbn string) (int, error) {
	c, err := e.countsForTitle(ctx, isbn)
	if err != nil {
		return 0, err
	}
	return c.Total, nil
}

// AvailableCopies is TotalCopies minus open loans, floored at 0.
func (e *Engine) AvailableCopies(ctx context.Context, isbn string) (int, error) {
	c, err := e.countsForTitle(ctx, isbn)
	if err != nil {
		return 0, err
	}
	return c.Available(), nil
}

func (e *Engine) IsAvailable(ctx context.Context, isbn string) (bool, error) {
	n, err := e.AvailableCopies(ctx, isbn)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const reportByCopy = `
	SELECT b.title, b.isbn,
	       COUNT(g.id),
	       COUNT(g.id) FILTER (WHERE EXISTS (
	           SELECT 1 FROM loans l WHERE l.book_id = g.id AND NOT l.is_returned))
	FROM books b
	JOIN books g ON g.id = b.id OR g.isbn = b.isbn
	WHERE b.id = $1
	GROUP BY b.id, b.title, b.isbn`

// ForBook reports the availability of the title group of copy bookID. The
// title and its counts come from one statement and so one snapshot.
func (e *Engine) ForBook(ctx context.Context, bookID int64) (Report, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var (
		title string
		isbn  *string
		c     Counts
	)
	err := e.db.QueryRow(ctx, reportByCopy, bookID).Scan(&title, &isbn, &c.Total, &c.Open)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, ErrBookNotFound
		}
		return Report{}, fmt.Errorf("report book %d: %w", bookID, err)
	}
	return newReport(bookID, title, isbn, c), nil
}

// ForISBN reports the availability of a title by ISBN, with the legacy
// fallback for unknown ISBNs.
func (e *Engine) ForISBN(ctx context.Context, isbn string) (Report, error) {
	c, err := e.countsForTitle(ctx, isbn)
	if err != nil {
		return Report{}, err
	}
	return newReport(0, "", &isbn, c), nil
}
