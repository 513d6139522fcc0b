package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"libraryapi/internal/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounts_Available(t *testing.T) {
	tests := []struct {
		name      string
		c         Counts
		available int
		borrowed  int
	}{
		{"all free", Counts{Total: 3, Open: 0}, 3, 0},
		{"some out", Counts{Total: 3, Open: 2}, 1, 2},
		{"all out", Counts{Total: 1, Open: 1}, 0, 1},
		{"more open than copies floors at zero", Counts{Total: 1, Open: 4}, 0, 1},
		{"negative open capped at total", Counts{Total: 2, Open: -1}, 2, 0},
		{"empty group", Counts{}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.available, tt.c.Available())
			assert.Equal(t, tt.borrowed, tt.c.Borrowed())
			assert.GreaterOrEqual(t, tt.c.Available(), 0)
			assert.LessOrEqual(t, tt.c.Available(), tt.c.Total)
			assert.Equal(t, tt.available > 0, tt.c.IsAvailable())
		})
	}
}

func TestAdmit(t *testing.T) {
	assert.NoError(t, Admit(Counts{Total: 2, Open: 1}))

	err := Admit(Counts{Total: 1, Open: 1})
	assert.ErrorIs(t, err, ErrNoAvailableCopies)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "no available copies", err.Error())
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = r.values[i].(int)
		case *string:
			*p = r.values[i].(string)
		case **string:
			if r.values[i] == nil {
				*p = nil
			} else {
				s := r.values[i].(string)
				*p = &s
			}
		}
	}
	return nil
}

// fakeQuerier answers queries in order and records the arguments.
type fakeQuerier struct {
	rows  []fakeRow
	calls [][]any
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.calls = append(q.calls, args)
	row := q.rows[0]
	q.rows = q.rows[1:]
	return row
}

func TestEngine_TotalAndAvailable(t *testing.T) {
	q := &fakeQuerier{rows: []fakeRow{
		{values: []any{2, 1}},
		{values: []any{2, 1}},
		{values: []any{2, 2}},
	}}
	e := NewEngine(q, time.Second)
	ctx := context.Background()

	total, err := e.TotalCopies(ctx, "222")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	avail, err := e.AvailableCopies(ctx, "222")
	require.NoError(t, err)
	assert.Equal(t, 1, avail)

	ok, err := e.IsAvailable(ctx, "222")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []any{"222"}, q.calls[0])
}

func TestEngine_UnknownISBNDefaultsToOne(t *testing.T) {
	q := &fakeQuerier{rows: []fakeRow{{values: []any{0, 0}}, {values: []any{0, 0}}}}
	e := NewEngine(q, time.Second)

	total, err := e.TotalCopies(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	avail, err := e.AvailableCopies(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, 1, avail)
}

func TestEngine_ForBook(t *testing.T) {
	t.Run("title group", func(t *testing.T) {
		q := &fakeQuerier{rows: []fakeRow{
			{values: []any{"Dune", "222", 3, 1}},
		}}
		r, err := NewEngine(q, time.Second).ForBook(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), r.BookID)
		assert.Equal(t, "Dune", r.Title)
		assert.Equal(t, 3, r.TotalCopies)
		assert.Equal(t, 2, r.AvailableCopies)
		assert.Equal(t, 1, r.BorrowedCopies)
		assert.True(t, r.IsAvailable)
		// Title and counts are read in a single round trip.
		require.Len(t, q.calls, 1)
		assert.Equal(t, []any{int64(5)}, q.calls[0])
	})

	t.Run("copy without isbn counts alone", func(t *testing.T) {
		q := &fakeQuerier{rows: []fakeRow{
			{values: []any{"Zine", nil, 1, 1}},
		}}
		r, err := NewEngine(q, time.Second).ForBook(context.Background(), 9)
		require.NoError(t, err)
		assert.Nil(t, r.ISBN)
		assert.False(t, r.IsAvailable)
		assert.Equal(t, []any{int64(9)}, q.calls[0])
	})

	t.Run("unknown copy", func(t *testing.T) {
		q := &fakeQuerier{rows: []fakeRow{{err: pgx.ErrNoRows}}}
		_, err := NewEngine(q, time.Second).ForBook(context.Background(), 1)
		assert.ErrorIs(t, err, ErrBookNotFound)
	})

	t.Run("storage failure", func(t *testing.T) {
		q := &fakeQuerier{rows: []fakeRow{{err: errors.New("conn reset")}}}
		_, err := NewEngine(q, time.Second).ForBook(context.Background(), 1)
		require.Error(t, err)
		assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	})
}
