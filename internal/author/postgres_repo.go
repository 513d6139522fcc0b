package author

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libraryapi/internal/platform/postgres"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var dialect = goqu.Dialect("postgres")

var authorColumns = []any{"id", "name", "email", "bio", "birth_date", "nationality", "website", "created_at", "updated_at"}

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

func scanAuthor(row pgx.Row) (Author, error) {
	var a Author
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Bio, &a.BirthDate, &a.Nationality, &a.Website, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// nullable turns a nil pointer into an untyped nil so goqu renders NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func mapWriteErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if postgres.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *PostgresRepo) Create(ctx context.Context, in CreateInput) (Author, error) {
	query, args, err := dialect.Insert("authors").Rows(goqu.Record{
		"name":        in.Name,
		"email":       nullable(in.Email),
		"bio":         nullable(in.Bio),
		"birth_date":  nullable(in.BirthDate),
		"nationality": nullable(in.Nationality),
		"website":     nullable(in.Website),
	}).Returning(authorColumns...).Prepared(true).ToSQL()
	if err != nil {
		return Author{}, fmt.Errorf("build insert: %w", err)
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	a, err := scanAuthor(r.db.QueryRow(timeoutCtx, query, args...))
	if err != nil {
		return Author{}, mapWriteErr("insert author", err)
	}
	return a, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id int64) (Author, error) {
	query, args, err := dialect.From("authors").Select(authorColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return Author{}, fmt.Errorf("build select: %w", err)
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	a, err := scanAuthor(r.db.QueryRow(timeoutCtx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Author{}, ErrNotFound
		}
		return Author{}, fmt.Errorf("get author: %w", err)
	}
	return a, nil
}

func listFilters(q Query) []exp.Expression {
	var where []exp.Expression
	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		where = append(where, goqu.Or(
			goqu.C("name").ILike(pattern),
			goqu.C("email").ILike(pattern),
		))
	}
	if q.Nationality != "" {
		where = append(where, goqu.C("nationality").ILike("%"+q.Nationality+"%"))
	}
	return where
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Author, int, error) {
	base := dialect.From("authors").Where(listFilters(q)...)

	countSQL, countArgs, err := base.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	dataSQL, dataArgs, err := base.Select(authorColumns...).
		Order(goqu.C("id").Asc()).
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
		return nil, 0, fmt.Errorf("count authors: %w", err)
	}

	rows, err := r.db.Query(timeoutCtx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	out := make([]Author, 0, q.Limit)
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) Update(ctx context.Context, id int64, p Patch) (Author, error) {
	rec := goqu.Record{"updated_at": goqu.L("now()")}
	if p.Name != nil {
		rec["name"] = *p.Name
	}
	if p.Email != nil {
		rec["email"] = *p.Email
	}
	if p.Bio != nil {
		rec["bio"] = *p.Bio
	}
	if p.BirthDate != nil {
		rec["birth_date"] = *p.BirthDate
	}
	if p.Nationality != nil {
		rec["nationality"] = *p.Nationality
	}
	if p.Website != nil {
		rec["website"] = *p.Website
	}

	query, args, err := dialect.Update("authors").Set(rec).
		Where(goqu.C("id").Eq(id)).
		Returning(authorColumns...).Prepared(true).ToSQL()
	if err != nil {
		return Author{}, fmt.Errorf("build update: %w", err)
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	a, err := scanAuthor(r.db.QueryRow(timeoutCtx, query, args...))
	if err != nil {
		return Author{}, mapWriteErr("update author", err)
	}
	return a, nil
}

// Delete locks the author before looking for books so a copy created
// concurrently either sees the author gone or blocks this delete.
func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	return postgres.WithTx(timeoutCtx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM authors WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock author: %w", err)
		}

		var hasBooks bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE author_id = $1)`, id).Scan(&hasBooks)
		if err != nil {
			return fmt.Errorf("check books: %w", err)
		}
		if hasBooks {
			return ErrHasBooks
		}

		if _, err := tx.Exec(ctx, `DELETE FROM authors WHERE id = $1`, id); err != nil {
			if postgres.IsForeignKeyViolation(err) {
				return ErrHasBooks
			}
			return fmt.Errorf("delete author: %w", err)
		}
		return nil
	})
}
