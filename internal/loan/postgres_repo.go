package loan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"libraryapi/internal/availability"
	"libraryapi/internal/platform/postgres"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var dialect = goqu.Dialect("postgres")

const loanColumns = `id, user_id, book_id, borrow_date, return_date, is_returned, created_at, updated_at`

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	err := row.Scan(&l.ID, &l.UserID, &l.BookID, &l.BorrowDate, &l.ReturnDate, &l.IsReturned, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// lockTitle locks every copy of the title bookID belongs to, in id order, and
// returns their ids. A copy without an ISBN is a title of its own.
func lockTitle(ctx context.Context, tx pgx.Tx, bookID int64) (ids []int64, isbn *string, err error) {
	err = tx.QueryRow(ctx, `SELECT isbn FROM books WHERE id = $1`, bookID).Scan(&isbn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrBookNotFound
		}
		return nil, nil, fmt.Errorf("load book: %w", err)
	}

	var rows pgx.Rows
	if isbn != nil {
		rows, err = tx.Query(ctx, `SELECT id FROM books WHERE isbn = $1 ORDER BY id FOR UPDATE`, *isbn)
	} else {
		rows, err = tx.Query(ctx, `SELECT id FROM books WHERE id = $1 FOR UPDATE`, bookID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock title: %w", err)
	}
	ids, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, nil, fmt.Errorf("lock title: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil, ErrBookNotFound
	}
	if !slices.Contains(ids, bookID) {
		return nil, nil, ErrCopyMoved
	}
	return ids, isbn, nil
}

// Borrow admits a loan only while the title has a free copy. The title's
// copies stay locked from the count until commit, so concurrent borrowers of
// the same title queue behind each other and see each other's loans.
func (r *PostgresRepo) Borrow(ctx context.Context, userID, bookID int64) (Loan, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var out Loan
	err := postgres.WithTx(timeoutCtx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR KEY SHARE`, userID).Scan(&one)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("check user: %w", err)
		}

		ids, isbn, err := lockTitle(ctx, tx, bookID)
		if err != nil {
			return err
		}

		// Counted in a new statement so loans committed while we waited for
		// the locks are visible.
		var counts availability.Counts
		if isbn != nil {
			counts, err = availability.Count(ctx, tx, *isbn)
		} else {
			counts, err = availability.CountCopy(ctx, tx, bookID)
		}
		if err != nil {
			return err
		}
		if err := availability.Admit(counts); err != nil {
			return err
		}

		// Prefer the requested copy, else the lowest free one.
		var target int64
		err = tx.QueryRow(ctx, `
			SELECT b.id FROM books b
			WHERE b.id = ANY($1)
			  AND NOT EXISTS (SELECT 1 FROM loans l WHERE l.book_id = b.id AND NOT l.is_returned)
			ORDER BY (b.id = $2) DESC, b.id
			LIMIT 1`, ids, bookID).Scan(&target)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return availability.ErrNoAvailableCopies
			}
			return fmt.Errorf("pick copy: %w", err)
		}

		l, err := scanLoan(tx.QueryRow(ctx, `
			INSERT INTO loans (user_id, book_id, borrow_date)
			VALUES ($1, $2, now())
			RETURNING `+loanColumns, userID, target))
		if err != nil {
			switch {
			case postgres.IsUniqueViolation(err):
				return availability.ErrNoAvailableCopies
			case postgres.IsForeignKeyViolation(err):
				return ErrBookNotFound
			}
			return fmt.Errorf("insert loan: %w", err)
		}
		out = l
		return nil
	})
	return out, err
}

// Return closes the loan with one conditional update, so of two concurrent
// returns exactly one matches the open row.
func (r *PostgresRepo) Return(ctx context.Context, id int64) (Loan, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var out Loan
	err := postgres.WithTx(timeoutCtx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		l, err := scanLoan(tx.QueryRow(ctx, `
			UPDATE loans
			SET is_returned = true, return_date = GREATEST(now(), borrow_date), updated_at = now()
			WHERE id = $1 AND NOT is_returned
			RETURNING `+loanColumns, id))
		if err == nil {
			out = l
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("close loan: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loans WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check loan: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyReturned
	})
	return out, err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id int64) (Loan, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	l, err := scanLoan(r.db.QueryRow(timeoutCtx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Loan{}, ErrNotFound
		}
		return Loan{}, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

func listFilters(f Filter) []exp.Expression {
	var where []exp.Expression
	if f.UserID != nil {
		where = append(where, goqu.C("user_id").Eq(*f.UserID))
	}
	if f.BookID != nil {
		where = append(where, goqu.C("book_id").Eq(*f.BookID))
	}
	if f.IsReturned != nil {
		where = append(where, goqu.C("is_returned").Eq(*f.IsReturned))
	}
	return where
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Loan, int, error) {
	base := dialect.From("loans").Where(listFilters(f)...)

	countSQL, countArgs, err := base.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	dataSQL, dataArgs, err := base.Select(
		"id", "user_id", "book_id", "borrow_date", "return_date", "is_returned", "created_at", "updated_at",
	).Order(goqu.C("id").Asc()).
		Offset(uint(f.Skip)).
		Limit(uint(f.Limit)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(timeoutCtx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}

	rows, err := r.db.Query(timeoutCtx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	out := make([]Loan, 0, f.Limit)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM loans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
