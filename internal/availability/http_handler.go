package availability

import (
	"context"
	"net/http"

	"libraryapi/internal/httpx"
)

// Reporter is the read side the handler needs; *Engine implements it.
type Reporter interface {
	ForBook(ctx context.Context, bookID int64) (Report, error)
	ForISBN(ctx context.Context, isbn string) (Report, error)
}

type HTTPHandler struct {
	reports Reporter
}

func NewHTTPHandler(reports Reporter) *HTTPHandler {
	return &HTTPHandler{reports: reports}
}

// ForBook handles GET /books/{id}/availability
func (h *HTTPHandler) ForBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.WriteError(w, r, ErrBookNotFound)
		return
	}
	rep, err := h.reports.ForBook(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, rep, nil)
}

// ForISBN handles GET /availability/{isbn}
func (h *HTTPHandler) ForISBN(w http.ResponseWriter, r *http.Request) {
	isbn := httpx.NormalizeISBN(r.PathValue("isbn"))
	if isbn == "" {
		httpx.InvalidInput(w, r, []httpx.ErrorDetail{{Field: "isbn", Message: "isbn is required"}})
		return
	}
	rep, err := h.reports.ForISBN(r.Context(), isbn)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, rep, nil)
}
