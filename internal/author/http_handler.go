package author

import (
	"net/http"
	"strings"
	"time"

	"libraryapi/internal/httpx"
)

const dateLayout = "2006-01-02"

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type createReq struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Email       *string `json:"email" validate:"omitempty,email,max=255"`
	Bio         *string `json:"bio" validate:"omitempty,max=2000"`
	BirthDate   *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Nationality *string `json:"nationality" validate:"omitempty,max=50"`
	Website     *string `json:"website" validate:"omitempty,url,max=255"`
}

type updateReq struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email       *string `json:"email" validate:"omitempty,email,max=255"`
	Bio         *string `json:"bio" validate:"omitempty,max=2000"`
	BirthDate   *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Nationality *string `json:"nationality" validate:"omitempty,max=50"`
	Website     *string `json:"website" validate:"omitempty,url,max=255"`
}

// parseDate expects a value already checked by the datetime tag.
func parseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	d, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil
	}
	return &d
}

func lowerEmail(s *string) *string {
	if s == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*s))
	return &e
}

// Create handles POST /authors
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, r, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = lowerEmail(req.Email)
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.InvalidInput(w, r, details)
		return
	}

	a, err := h.service.Create(r.Context(), CreateInput{
		Name:        req.Name,
		Email:       req.Email,
		Bio:         req.Bio,
		BirthDate:   parseDate(req.BirthDate),
		Nationality: req.Nationality,
		Website:     req.Website,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, a)
}

// Get handles GET /authors/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.WriteError(w, r, ErrNotFound)
		return
	}
	a, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, a, nil)
}

// List handles GET /authors
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page, details := httpx.ParsePage(r, DefaultLimit, MaxLimit)
	if len(details) > 0 {
		httpx.InvalidInput(w, r, details)
		return
	}
	q := Query{
		Search:      r.URL.Query().Get("search"),
		Nationality: r.URL.Query().Get("nationality"),
		Skip:        page.Skip,
		Limit:       page.Limit,
	}

	authors, total, err := h.service.List(r.Context(), q)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, authors, map[string]any{
		"skip":  q.Skip,
		"limit": q.Limit,
		"total": total,
	})
}

// Update handles PATCH /authors/{id}
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
	if req.Name != nil {
		n := strings.TrimSpace(*req.Name)
		req.Name = &n
	}
	req.Email = lowerEmail(req.Email)
	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.InvalidInput(w, r, details)
		return
	}

	a, err := h.service.Update(r.Context(), id, Patch{
		Name:        req.Name,
		Email:       req.Email,
		Bio:         req.Bio,
		BirthDate:   parseDate(req.BirthDate),
		Nationality: req.Nationality,
		Website:     req.Website,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, a, nil)
}

// Delete handles DELETE /authors/{id}
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
