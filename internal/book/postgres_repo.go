package book

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"libraryapi/internal/platform/postgres"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var dialect = goqu.Dialect("postgres")

const openLoanExists = `EXISTS (SELECT 1 FROM loans l WHERE l.book_id = b.id AND NOT l.is_returned)`

const selectBook = `
	SELECT b.id, b.title, b.isbn, b.published_year, b.author_id, b.description,
	       ` + openLoanExists + ` AS is_borrowed, b.created_at, b.updated_at
	FROM books b`

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

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(
		&b.ID, &b.Title, &b.ISBN, &b.PublishedYear, &b.AuthorID, &b.Description,
		&b.IsBorrowed, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// lockISBN serializes writers of one title so the shared-field checks cannot
// interleave. The lock is released at commit.
func lockISBN(ctx context.Context, tx pgx.Tx, isbn string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('isbn:' || $1))`, isbn)
	if err != nil {
		return fmt.Errorf("lock isbn: %w", err)
	}
	return nil
}

// representative returns one existing copy of isbn other than excludeID.
func representative(ctx context.Context, tx pgx.Tx, isbn string, excludeID int64) (Book, bool, error) {
	b, err := scanBook(tx.QueryRow(ctx, selectBook+`
		WHERE b.isbn = $1 AND b.id <> $2
		ORDER BY b.id
		LIMIT 1`, isbn, excludeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, false, nil
		}
		return Book{}, false, fmt.Errorf("load title: %w", err)
	}
	return b, true, nil
}

// ensureAuthor checks the author exists and keeps it from being deleted
// until the transaction ends.
func ensureAuthor(ctx context.Context, tx pgx.Tx, authorID int64) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM authors WHERE id = $1 FOR KEY SHARE`, authorID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAuthorNotFound
		}
		return fmt.Errorf("check author: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Create(ctx context.Context, in CreateInput) (Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var out Book
	err := postgres.WithTx(timeoutCtx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		if in.ISBN != nil {
			if err := lockISBN(ctx, tx, *in.ISBN); err != nil {
				return err
			}
			existing, found, err := representative(ctx, tx, *in.ISBN, 0)
			if err != nil {
				return err
			}
			if found {
				if !sameTitle(existing, in.Title, in.PublishedYear, in.AuthorID, in.Description) {
					return ErrTitleMismatch
				}
				in.PublishedYear = existing.PublishedYear
				in.AuthorID = existing.AuthorID
				in.Description = existing.Description
			}
		}
		if in.AuthorID != nil {
			if err := ensureAuthor(ctx, tx, *in.AuthorID); err != nil {
				return err
			}
		}

		const insert = `
			INSERT INTO books (title, isbn, published_year, author_id, description)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, title, isbn, published_year, author_id, description, false, created_at, updated_at`
		b, err := scanBook(tx.QueryRow(ctx, insert, in.Title, in.ISBN, in.PublishedYear, in.AuthorID, in.Description))
		if err != nil {
			if postgres.IsForeignKeyViolation(err) {
				return ErrAuthorNotFound
			}
			return fmt.Errorf("insert book: %w", err)
		}
		out = b
		return nil
	})
	return out, err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id int64) (Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	b, err := scanBook(r.db.QueryRow(timeoutCtx, selectBook+` WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (r *PostgresRepo) ListByISBN(ctx context.Context, isbn string) ([]Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(timeoutCtx, selectBook+` WHERE b.isbn = $1 ORDER BY b.id`, isbn)
	if err != nil {
		return nil, fmt.Errorf("list books by isbn: %w", err)
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func listFilters(q Query) []exp.Expression {
	var where []exp.Expression
	if q.Search != "" {
		pattern := "%" + escapeLike(q.Search) + "%"
		where = append(where, goqu.Or(
			goqu.I("b.title").ILike(pattern),
			goqu.I("b.isbn").ILike(pattern),
			goqu.I("a.name").ILike(pattern),
		))
	}
	if q.AuthorID != nil {
		where = append(where, goqu.I("b.author_id").Eq(*q.AuthorID))
	}
	if q.AvailableOnly {
		where = append(where, goqu.L("NOT "+openLoanExists))
	}
	return where
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Book, int, error) {
	base := dialect.From(goqu.T("books").As("b")).
		LeftJoin(goqu.T("authors").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("b.author_id")))).
		Where(listFilters(q)...)

	countSQL, countArgs, err := base.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	dataSQL, dataArgs, err := base.Select(
		goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.isbn"), goqu.I("b.published_year"),
		goqu.I("b.author_id"), goqu.I("b.description"),
		goqu.L(openLoanExists).As("is_borrowed"),
		goqu.I("b.created_at"), goqu.I("b.updated_at"),
	).Order(goqu.I("b.id").Asc()).
		Offset(uint(q.Skip)).
		Limit(uint(q.Limit)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(timeoutCtx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	rows, err := r.db.Query(timeoutCtx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	out := make([]Book, 0, q.Limit)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) Update(ctx context.Context, id int64, p Patch) (Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var out Book
	err := postgres.WithTx(timeoutCtx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		cur, err := scanBook(tx.QueryRow(ctx, selectBook+` WHERE b.id = $1 FOR UPDATE OF b`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock book: %w", err)
		}

		next := cur
		if p.Title != nil {
			next.Title = *p.Title
		}
		if p.ISBN != nil {
			isbn := *p.ISBN
			next.ISBN = &isbn
		}
		if p.PublishedYear != nil {
			next.PublishedYear = p.PublishedYear
		}
		if p.AuthorID != nil {
			next.AuthorID = p.AuthorID
		}
		if p.Description != nil {
			next.Description = p.Description
		}

		movesTitle := next.ISBN != nil && (cur.ISBN == nil || *cur.ISBN != *next.ISBN)
		if next.ISBN != nil {
			if err := lockISBN(ctx, tx, *next.ISBN); err != nil {
				return err
			}
		}
		if movesTitle {
			target, found, err := representative(ctx, tx, *next.ISBN, id)
			if err != nil {
				return err
			}
			if found {
				if !sameTitle(target, next.Title, p.PublishedYear, p.AuthorID, p.Description) {
					return ErrTitleMismatch
				}
				// The moved copy joins the title as catalogued.
				next.PublishedYear = target.PublishedYear
				next.AuthorID = target.AuthorID
				next.Description = target.Description
			}
		}
		if p.AuthorID != nil {
			if err := ensureAuthor(ctx, tx, *p.AuthorID); err != nil {
				return err
			}
		}

		const update = `
			UPDATE books
			SET title = $2, isbn = $3, published_year = $4, author_id = $5, description = $6, updated_at = now()
			WHERE id = $1`
		if _, err := tx.Exec(ctx, update, id, next.Title, next.ISBN, next.PublishedYear, next.AuthorID, next.Description); err != nil {
			return fmt.Errorf("update book: %w", err)
		}

		if next.ISBN != nil {
			const propagate = `
				UPDATE books
				SET title = $3, published_year = $4, author_id = $5, description = $6, updated_at = now()
				WHERE isbn = $1 AND id <> $2`
			if _, err := tx.Exec(ctx, propagate, *next.ISBN, id, next.Title, next.PublishedYear, next.AuthorID, next.Description); err != nil {
				return fmt.Errorf("propagate title fields: %w", err)
			}
		}

		out, err = scanBook(tx.QueryRow(ctx, selectBook+` WHERE b.id = $1`, id))
		if err != nil {
			return fmt.Errorf("reload book: %w", err)
		}
		return nil
	})
	return out, err
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	return postgres.WithTx(timeoutCtx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM books WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock book: %w", err)
		}
		// Separate statement so loans committed while we waited for the lock are seen.
		var borrowed bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM loans WHERE book_id = $1 AND NOT is_returned)`, id).Scan(&borrowed)
		if err != nil {
			return fmt.Errorf("check open loans: %w", err)
		}
		if borrowed {
			return ErrCurrentlyBorrowed
		}
		if _, err := tx.Exec(ctx, `DELETE FROM books WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		return nil
	})
}
