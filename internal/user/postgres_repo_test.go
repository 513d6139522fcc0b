package user

import (
	"context"
	"testing"
	"time"

	"libraryapi/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_CreateAndGet(t *testing.T) {
	pool := testutil.OpenTestDB(t, "user_test")
	repo := NewPostgresRepo(pool, 5*time.Second)
	ctx := context.Background()

	u, err := repo.Create(ctx, NewUser{Username: "alice", Email: "alice@example.com", PasswordHash: "hash", Role: "regular"})
	require.NoError(t, err)
	assert.True(t, u.IsActive)
	assert.Nil(t, u.FullName)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = repo.Create(ctx, NewUser{Username: "alice", Email: "other@example.com", PasswordHash: "hash", Role: "regular"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = repo.Create(ctx, NewUser{Username: "alice2", Email: "alice@example.com", PasswordHash: "hash", Role: "regular"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = repo.GetByID(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepo_ListAndUpdate(t *testing.T) {
	pool := testutil.OpenTestDB(t, "user_test")
	repo := NewPostgresRepo(pool, 5*time.Second)
	ctx := context.Background()

	admin, err := repo.Create(ctx, NewUser{Username: "root", Email: "root@example.com", PasswordHash: "hash", Role: "admin"})
	require.NoError(t, err)
	reader, err := repo.Create(ctx, NewUser{Username: "reader", Email: "reader@example.com", PasswordHash: "hash", Role: "regular"})
	require.NoError(t, err)

	inactive := false
	updated, err := repo.Update(ctx, reader.ID, Patch{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "reader@example.com", updated.Email)

	users, total, err := repo.List(ctx, Query{IsActive: &inactive, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, reader.ID, users[0].ID)

	users, total, err = repo.List(ctx, Query{Role: "admin", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, admin.ID, users[0].ID)

	taken := "root@example.com"
	_, err = repo.Update(ctx, reader.ID, Patch{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	promoted, err := repo.SetRole(ctx, reader.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", promoted.Role)

	require.NoError(t, repo.SetPassword(ctx, reader.ID, "new-hash"))
	got, err := repo.GetByID(ctx, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)

	_, err = repo.SetRole(ctx, 424242, "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepo_DeleteWithOpenLoan(t *testing.T) {
	pool := testutil.OpenTestDB(t, "user_test")
	repo := NewPostgresRepo(pool, 5*time.Second)
	ctx := context.Background()

	userID := testutil.InsertUser(t, pool, "borrower", "regular")
	var bookID, loanID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO books (title) VALUES ('Kindred') RETURNING id`).Scan(&bookID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO loans (user_id, book_id, borrow_date) VALUES ($1, $2, now()) RETURNING id`, userID, bookID).Scan(&loanID))

	err := repo.Delete(ctx, userID)
	assert.ErrorIs(t, err, ErrHasOpenLoans)
	_, err = repo.GetByID(ctx, userID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE loans SET is_returned = true, return_date = now() WHERE id = $1`, loanID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, userID))
	_, err = repo.GetByID(ctx, userID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, userID), ErrNotFound)
}
