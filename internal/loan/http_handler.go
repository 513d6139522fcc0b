package loan

import (
	"net/http"

	"libraryapi/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type borrowReq struct {
	UserID *int64 `json:"user_id" validate:"omitempty,gt=0"`
	BookID int64  `json:"book_id" validate:"required,gt=0"`
}

// Borrow handles POST /transactions
func (h *HTTPHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, r, "Invalid request body")
		return
	}
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.InvalidInput(w, r, details)
		return
	}

	l, err := h.service.Borrow(r.Context(), BorrowInput{UserID: req.UserID, BookID: req.BookID})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, l)
}

// Return handles POST /transactions/{id}/return
func (h *HTTPHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.WriteError(w, r, ErrNotFound)
		return
	}
	l, err := h.service.Return(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, l, nil)
}

// Get handles GET /transactions/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.WriteError(w, r, ErrNotFound)
		return
	}
	l, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, l, nil)
}

// parseFilter reads is_returned, skip and limit.
func parseFilter(r *http.Request) (Filter, []httpx.ErrorDetail) {
	page, details := httpx.ParsePage(r, DefaultLimit, MaxLimit)
	f := Filter{Skip: page.Skip, Limit: page.Limit}
	isReturned, ok := httpx.QueryBool(r, "is_returned")
	if !ok {
		details = append(details, httpx.ErrorDetail{Field: "is_returned", Message: "is_returned must be a boolean"})
	}
	f.IsReturned = isReturned
	return f, details
}

func (h *HTTPHandler) writeList(w http.ResponseWriter, r *http.Request, loans []Loan, total int, f Filter) {
	httpx.JSONSuccess(w, r, loans, map[string]any{
		"skip":  f.Skip,
		"limit": f.Limit,
		"total": total,
	})
}

// ListByUser handles GET /transactions/user/{id}
func (h *HTTPHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.InvalidInput(w, r, []httpx.ErrorDetail{{Field: "id", Message: "id must be a positive integer"}})
		return
	}
	f, details := parseFilter(r)
	if len(details) > 0 {
		httpx.InvalidInput(w, r, details)
		return
	}
	loans, total, err := h.service.ListByUser(r.Context(), userID, f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.writeList(w, r, loans, total, f)
}

// ListByBook handles GET /transactions/book/{id}
func (h *HTTPHandler) ListByBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.InvalidInput(w, r, []httpx.ErrorDetail{{Field: "id", Message: "id must be a positive integer"}})
		return
	}
	f, details := parseFilter(r)
	if len(details) > 0 {
		httpx.InvalidInput(w, r, details)
		return
	}
	loans, total, err := h.service.ListByBook(r.Context(), bookID, f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.writeList(w, r, loans, total, f)
}

// List handles GET /transactions
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	f, details := parseFilter(r)
	if len(details) > 0 {
		httpx.InvalidInput(w, r, details)
		return
	}
	loans, total, err := h.service.List(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.writeList(w, r, loans, total, f)
}

// Delete handles DELETE /transactions/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.WriteError(w, r, ErrNotFound)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONNoContent(w)
}
