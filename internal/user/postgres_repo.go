package user

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

const userColumns = `id, username, email, full_name, password_hash, role, is_active, created_at, updated_at`

var userColumnList = []any{"id", "username", "email", "full_name", "password_hash", "role", "is_active", "created_at", "updated_at"}

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

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts the account. The unique constraints decide duplicates so
// two concurrent registrations cannot both win.
func (r *PostgresRepo) Create(ctx context.Context, in NewUser) (User, error) {
	const query = `
	INSERT INTO users (username, email, full_name, password_hash, role)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + userColumns
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(r.db.QueryRow(timeoutCtx, query, in.Username, in.Email, in.FullName, in.PasswordHash, in.Role))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			if postgres.ConstraintName(err) == "users_email_key" {
				return User{}, ErrEmailTaken
			}
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id int64) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PostgresRepo) getOne(ctx context.Context, query string, arg any) (User, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(r.db.QueryRow(timeoutCtx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func listFilters(q Query) []exp.Expression {
	var where []exp.Expression
	if q.Role != "" {
		where = append(where, goqu.C("role").Eq(q.Role))
	}
	if q.IsActive != nil {
		where = append(where, goqu.C("is_active").Eq(*q.IsActive))
	}
	return where
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]User, int, error) {
	base := dialect.From("users").Where(listFilters(q)...)

	countSQL, countArgs, err := base.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	dataSQL, dataArgs, err := base.Select(userColumnList...).
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
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.db.Query(timeoutCtx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]User, 0, q.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) Update(ctx context.Context, id int64, p Patch) (User, error) {
	rec := goqu.Record{"updated_at": goqu.L("now()")}
	if p.Email != nil {
		rec["email"] = *p.Email
	}
	if p.FullName != nil {
		rec["full_name"] = *p.FullName
	}
	if p.IsActive != nil {
		rec["is_active"] = *p.IsActive
	}
	return r.updateOne(ctx, rec, id)
}

func (r *PostgresRepo) SetPassword(ctx context.Context, id int64, hash string) error {
	_, err := r.updateOne(ctx, goqu.Record{"password_hash": hash, "updated_at": goqu.L("now()")}, id)
	return err
}

func (r *PostgresRepo) SetRole(ctx context.Context, id int64, role string) (User, error) {
	return r.updateOne(ctx, goqu.Record{"role": role, "updated_at": goqu.L("now()")}, id)
}

func (r *PostgresRepo) updateOne(ctx context.Context, rec goqu.Record, id int64) (User, error) {
	query, args, err := dialect.Update("users").Set(rec).
		Where(goqu.C("id").Eq(id)).
		Returning(userColumnList...).Prepared(true).ToSQL()
	if err != nil {
		return User{}, fmt.Errorf("build update: %w", err)
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	u, err := scanUser(r.db.QueryRow(timeoutCtx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return User{}, ErrNotFound
		case postgres.IsUniqueViolation(err):
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// Delete locks the account before looking for open loans. A concurrent
// borrow needs a key-share lock on the same row, so it cannot slip in
// between the check and the delete.
func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	return postgres.WithTx(timeoutCtx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		var open bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loans WHERE user_id = $1 AND NOT is_returned)`, id).Scan(&open)
		if err != nil {
			return fmt.Errorf("check loans: %w", err)
		}
		if open {
			return ErrHasOpenLoans
		}

		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}
