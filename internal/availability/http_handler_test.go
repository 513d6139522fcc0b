package availability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"libraryapi/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockReporter struct {
	mock.Mock
}

func (m *mockReporter) ForBook(ctx context.Context, bookID int64) (Report, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).(Report), args.Error(1)
}

func (m *mockReporter) ForISBN(ctx context.Context, isbn string) (Report, error) {
	args := m.Called(ctx, isbn)
	return args.Get(0).(Report), args.Error(1)
}

func TestHTTPHandler_ForBook(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		reports := new(mockReporter)
		isbn := "111"
		reports.On("ForBook", mock.Anything, int64(3)).
			Return(newReport(3, "Dune", &isbn, Counts{Total: 2, Open: 1}), nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/books/3/availability", nil)
		r.SetPathValue("id", "3")

		NewHTTPHandler(reports).ForBook(w, r)

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, float64(2), resp.Data()["total_copies"])
		assert.Equal(t, float64(1), resp.Data()["available_copies"])
		assert.Equal(t, float64(1), resp.Data()["borrowed_copies"])
		reports.AssertExpectations(t)
	})

	t.Run("unknown copy", func(t *testing.T) {
		reports := new(mockReporter)
		reports.On("ForBook", mock.Anything, int64(9)).Return(Report{}, ErrBookNotFound)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/books/9/availability", nil)
		r.SetPathValue("id", "9")

		NewHTTPHandler(reports).ForBook(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		reports := new(mockReporter)
		reports.On("ForBook", mock.Anything, int64(9)).Return(Report{}, errors.New("connection reset"))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/books/9/availability", nil)
		r.SetPathValue("id", "9")

		NewHTTPHandler(reports).ForBook(w, r)

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.NotContains(t, resp.ErrorMessage(), "connection reset")
	})
}

func TestHTTPHandler_ForISBN(t *testing.T) {
	reports := new(mockReporter)
	isbn := "9780441013593"
	reports.On("ForISBN", mock.Anything, isbn).Return(newReport(0, "", &isbn, Counts{Total: 1}), nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/availability/978-0441013593", nil)
	r.SetPathValue("isbn", "978-0441013593")

	NewHTTPHandler(reports).ForISBN(w, r)

	resp := testutil.RecordHTTPResponse(w)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, resp.Data()["is_available"])
	reports.AssertExpectations(t)
}
