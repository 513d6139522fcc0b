package loan

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"libraryapi/internal/authz"
	"libraryapi/internal/availability"
	"libraryapi/internal/testutil"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*HTTPHandler, *MockRepository) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	return NewHTTPHandler(NewService(repo, nil)), repo
}

func TestHTTPHandler_Borrow(t *testing.T) {
	handler, repo := newTestHandler(t)

	t.Run("created", func(t *testing.T) {
		now := time.Now().UTC()
		repo.EXPECT().Borrow(gomock.Any(), int64(7), int64(3)).
			Return(Loan{ID: 11, UserID: 7, BookID: 3, BorrowDate: now}, nil)

		r := testutil.NewRequest(http.MethodPost, "/transactions", map[string]any{"book_id": 3})
		r = testutil.WithPrincipal(r, 7, authz.RoleRegular)
		w := httptest.NewRecorder()

		handler.Borrow(w, r)

		resp := testutil.RecordHTTPResponse(w)
		require.Equal(t, http.StatusCreated, resp.Code)
		assert.Equal(t, float64(11), resp.Data()["id"])
		assert.Equal(t, false, resp.Data()["is_returned"])
		assert.Nil(t, resp.Data()["return_date"])
	})

	t.Run("no available copies", func(t *testing.T) {
		repo.EXPECT().Borrow(gomock.Any(), int64(8), int64(3)).Return(Loan{}, availability.ErrNoAvailableCopies)

		r := testutil.NewRequest(http.MethodPost, "/transactions", `{"user_id":8,"book_id":3}`)
		r = testutil.WithPrincipal(r, 8, authz.RoleRegular)
		w := httptest.NewRecorder()

		handler.Borrow(w, r)

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "CONFLICT", resp.ErrorCode())
		assert.Equal(t, "no available copies", resp.ErrorMessage())
	})

	t.Run("missing book id", func(t *testing.T) {
		r := testutil.NewRequest(http.MethodPost, "/transactions", `{}`)
		r = testutil.WithPrincipal(r, 8, authz.RoleRegular)
		w := httptest.NewRecorder()

		handler.Borrow(w, r)

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode())
	})

	t.Run("unknown user", func(t *testing.T) {
		repo.EXPECT().Borrow(gomock.Any(), int64(99), int64(3)).Return(Loan{}, ErrUserNotFound)

		r := testutil.NewRequest(http.MethodPost, "/transactions", `{"user_id":99,"book_id":3}`)
		r = testutil.WithPrincipal(r, 1, authz.RoleAdmin)
		w := httptest.NewRecorder()

		handler.Borrow(w, r)

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "user does not exist", resp.ErrorMessage())
	})
}

func TestHTTPHandler_Return(t *testing.T) {
	handler, repo := newTestHandler(t)

	t.Run("closed", func(t *testing.T) {
		returned := time.Now().UTC()
		repo.EXPECT().GetByID(gomock.Any(), int64(11)).Return(Loan{ID: 11, UserID: 7}, nil)
		repo.EXPECT().Return(gomock.Any(), int64(11)).
			Return(Loan{ID: 11, UserID: 7, IsReturned: true, ReturnDate: &returned}, nil)

		r := httptest.NewRequest(http.MethodPost, "/transactions/11/return", nil)
		r.SetPathValue("id", "11")
		r = testutil.WithPrincipal(r, 7, authz.RoleRegular)
		w := httptest.NewRecorder()

		handler.Return(w, r)

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, true, resp.Data()["is_returned"])
		assert.NotNil(t, resp.Data()["return_date"])
	})

	t.Run("already returned", func(t *testing.T) {
		repo.EXPECT().GetByID(gomock.Any(), int64(11)).Return(Loan{ID: 11, UserID: 7, IsReturned: true}, nil)
		repo.EXPECT().Return(gomock.Any(), int64(11)).Return(Loan{}, ErrAlreadyReturned)

		r := httptest.NewRequest(http.MethodPost, "/transactions/11/return", nil)
		r.SetPathValue("id", "11")
		r = testutil.WithPrincipal(r, 7, authz.RoleRegular)
		w := httptest.NewRecorder()

		handler.Return(w, r)

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "already returned", resp.ErrorMessage())
	})

	t.Run("unknown", func(t *testing.T) {
		repo.EXPECT().GetByID(gomock.Any(), int64(12)).Return(Loan{}, ErrNotFound)

		r := httptest.NewRequest(http.MethodPost, "/transactions/12/return", nil)
		r.SetPathValue("id", "12")
		r = testutil.WithPrincipal(r, 7, authz.RoleRegular)
		w := httptest.NewRecorder()

		handler.Return(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/transactions/12/return", nil)
		r.SetPathValue("id", "12")
		w := httptest.NewRecorder()

		handler.Return(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHTTPHandler_Lists(t *testing.T) {
	handler, repo := newTestHandler(t)

	t.Run("by user with filter", func(t *testing.T) {
		returned := true
		uid := int64(7)
		repo.EXPECT().List(gomock.Any(), Filter{UserID: &uid, IsReturned: &returned, Skip: 2, Limit: 3}).
			Return([]Loan{{ID: 1, UserID: 7, IsReturned: true}}, 4, nil)

		r := httptest.NewRequest(http.MethodGet, "/transactions/user/7?is_returned=true&skip=2&limit=3", nil)
		r.SetPathValue("id", "7")
		r = testutil.WithPrincipal(r, 7, authz.RoleRegular)
		w := httptest.NewRecorder()

		handler.ListByUser(w, r)

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusOK, resp.Code)
		meta, _ := resp.Body["meta"].(map[string]any)
		assert.Equal(t, float64(4), meta["total"])
	})

	t.Run("by book as regular user", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/transactions/book/3", nil)
		r.SetPathValue("id", "3")
		r = testutil.WithPrincipal(r, 7, authz.RoleRegular)
		w := httptest.NewRecorder()

		handler.ListByBook(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("all with bad flag", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/transactions?is_returned=perhaps", nil)
		r = testutil.WithPrincipal(r, 1, authz.RoleAdmin)
		w := httptest.NewRecorder()

		handler.List(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("all as admin", func(t *testing.T) {
		repo.EXPECT().List(gomock.Any(), Filter{Limit: DefaultLimit}).Return(nil, 0, nil)

		r := httptest.NewRequest(http.MethodGet, "/transactions", nil)
		r = testutil.WithPrincipal(r, 1, authz.RoleAdmin)
		w := httptest.NewRecorder()

		handler.List(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHTTPHandler_Delete(t *testing.T) {
	handler, repo := newTestHandler(t)
	repo.EXPECT().Delete(gomock.Any(), int64(11)).Return(nil)

	r := httptest.NewRequest(http.MethodDelete, "/transactions/11", nil)
	r.SetPathValue("id", "11")
	r = testutil.WithPrincipal(r, 1, authz.RoleAdmin)
	w := httptest.NewRecorder()

	handler.Delete(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
