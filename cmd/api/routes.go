package main

import (
	"context"
	"net/http"
	"time"

	"libraryapi/internal/auth"
	"libraryapi/internal/author"
	"libraryapi/internal/availability"
	"libraryapi/internal/book"
	"libraryapi/internal/httpx"
	"libraryapi/internal/loan"
	"libraryapi/internal/user"
)

const apiPrefix = "/api/v1"

type handlers struct {
	books        *book.HTTPHandler
	authors      *author.HTTPHandler
	loans        *loan.HTTPHandler
	users        *user.HTTPHandler
	auth         *auth.HTTPHandler
	availability *availability.HTTPHandler
}

// newRouter registers the health probes at the root and every API route
// under apiPrefix. ready is called by /readyz.
func newRouter(h handlers, ready func(ctx context.Context) error) *http.ServeMux {
	api := http.NewServeMux()

	api.HandleFunc("POST /auth/register", h.users.Register)
	api.HandleFunc("POST /auth/login", h.auth.Login)
	api.HandleFunc("POST /auth/logout", h.auth.Logout)
	api.HandleFunc("GET /users/me", h.users.Me)
	api.HandleFunc("GET /users", h.users.List)
	api.HandleFunc("GET /users/{id}", h.users.Get)
	api.HandleFunc("PATCH /users/{id}", h.users.Update)
	api.HandleFunc("DELETE /users/{id}", h.users.Delete)
	api.HandleFunc("POST /users/{id}/change-password", h.users.ChangePassword)
	api.HandleFunc("POST /users/{id}/role", h.users.SetRole)

	api.HandleFunc("POST /authors", h.authors.Create)
	api.HandleFunc("GET /authors", h.authors.List)
	api.HandleFunc("GET /authors/{id}", h.authors.Get)
	api.HandleFunc("PATCH /authors/{id}", h.authors.Update)
	api.HandleFunc("DELETE /authors/{id}", h.authors.Delete)

	api.HandleFunc("POST /books", h.books.Create)
	api.HandleFunc("GET /books", h.books.List)
	api.HandleFunc("GET /books/{id}", h.books.Get)
	api.HandleFunc("PATCH /books/{id}", h.books.Update)
	api.HandleFunc("DELETE /books/{id}", h.books.Delete)
	api.HandleFunc("GET /books/isbn/{isbn}", h.books.GetByISBN)
	// ServeMux treats /books/{id}/availability and /books/isbn/{isbn} as
	// conflicting, so copy sub-resources share one pattern.
	api.HandleFunc("GET /books/{id}/{sub}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("sub") != "availability" {
			httpx.WriteError(w, r, book.ErrNotFound)
			return
		}
		h.availability.ForBook(w, r)
	})
	api.HandleFunc("GET /availability/{isbn}", h.availability.ForISBN)

	api.HandleFunc("POST /transactions", h.loans.Borrow)
	api.HandleFunc("GET /transactions", h.loans.List)
	api.HandleFunc("GET /transactions/{id}", h.loans.Get)
	api.HandleFunc("DELETE /transactions/{id}", h.loans.Delete)
	api.HandleFunc("POST /transactions/{id}/return", h.loans.Return)
	api.HandleFunc("GET /transactions/user/{id}", h.loans.ListByUser)
	api.HandleFunc("GET /transactions/book/{id}", h.loans.ListByBook)

	root := http.NewServeMux()
	root.Handle(apiPrefix+"/", http.StripPrefix(apiPrefix, api))

	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := ready(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	return root
}
