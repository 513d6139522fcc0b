package book

import (
	"net/http"
	"strconv"
	"strings"

	"libraryapi/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type createReq struct {
	Title         string  `json:"title" validate:"required,min=1,max=200"`
	ISBN          *string `json:"isbn" validate:"omitempty,max=17,isbn"`
	PublishedYear *int    `json:"published_year" validate:"omitempty,gte=1000,lte=2030"`
	AuthorID      *int64  `json:"author_id" validate:"omitempty,gt=0"`
	Description   *string `json:"description" validate:"omitempty,max=1000"`
}

type updateReq struct {
	Title         *string `json:"title" validate:"omitempty,min=1,max=200"`
	ISBN          *string `json:"isbn" validate:"omitempty,max=17,isbn"`
	PublishedYear *int    `json:"published_year" validate:"omitempty,gte=1000,lte=2030"`
	AuthorID      *int64  `json:"author_id" validate:"omitempty,gt=0"`
	Description   *string `json:"description" validate:"omitempty,max=1000"`
}

func normalizeISBN(isbn *string) *string {
	if isbn == nil {
		return nil
	}
	n := httpx.NormalizeISBN(*isbn)
	if n == "" {
		return nil
	}
	return &n
}

// Create handles POST /books
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, r, "Invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.InvalidInput(w, r, details)
		return
	}

	b, err := h.service.Create(r.Context(), CreateInput{
		Title:         req.Title,
		ISBN:          normalizeISBN(req.ISBN),
		PublishedYear: req.PublishedYear,
		AuthorID:      req.AuthorID,
		Description:   req.Description,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, b)
}

// Get handles GET /books/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.WriteError(w, r, ErrNotFound)
		return
	}
	b, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// GetByISBN handles GET /books/isbn/{isbn}
func (h *HTTPHandler) GetByISBN(w http.ResponseWriter, r *http.Request) {
	isbn := httpx.NormalizeISBN(r.PathValue("isbn"))
	if isbn == "" {
		httpx.WriteError(w, r, ErrTitleNotFound)
		return
	}
	t, err := h.service.GetByISBN(r.Context(), isbn)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, t, nil)
}

// List handles GET /books
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, details := httpx.ParsePage(r, DefaultLimit, MaxLimit)
	params := Query{
		Search: query.Get("search"),
		Skip:   page.Skip,
		Limit:  page.Limit,
	}

	if v := query.Get("author_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			details = append(details, httpx.ErrorDetail{Field: "author_id", Message: "author_id must be a positive integer"})
		} else {
			params.AuthorID = &id
		}
	}
	availableOnly, ok := httpx.QueryBool(r, "available_only")
	if !ok {
		details = append(details, httpx.ErrorDetail{Field: "available_only", Message: "available_only must be a boolean"})
	} else if availableOnly != nil {
		params.AvailableOnly = *availableOnly
	}
	if len(details) > 0 {
		httpx.InvalidInput(w, r, details)
		return
	}

	books, total, err := h.service.List(r.Context(), params)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	httpx.JSONSuccess(w, r, books, map[string]any{
		"skip":  params.Skip,
		"limit": params.Limit,
		"total": total,
	})
}

// Update handles PATCH /books/{id}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.WriteError(w, r, ErrNotFound)
		return
	}
	var req updateReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, r, "Invalid request body")
		return
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		req.Title = &t
	}
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.InvalidInput(w, r, details)
		return
	}

	b, err := h.service.Update(r.Context(), id, Patch{
		Title:         req.Title,
		ISBN:          normalizeISBN(req.ISBN),
		PublishedYear: req.PublishedYear,
		AuthorID:      req.AuthorID,
		Description:   req.Description,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// Delete handles DELETE /books/{id}
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
