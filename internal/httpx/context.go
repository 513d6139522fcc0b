package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"libraryapi/internal/authz"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	loggerKey    contextKey = "logger"
)

// UserIDFrom retrieves the authenticated user id from the request context,
// or "" for anonymous requests.
func UserIDFrom(r *http.Request) string {
	p := authz.PrincipalFrom(r.Context())
	if !p.Authenticated() {
		return ""
	}
	return strconv.FormatInt(p.UserID, 10)
}

// RoleFrom retrieves the user role from the request context.
func RoleFrom(r *http.Request) string {
	return authz.PrincipalFrom(r.Context()).Role
}

// ContextWithUser returns a new context carrying the authenticated principal.
func ContextWithUser(ctx context.Context, userID int64, role string) context.Context {
	return authz.WithPrincipal(ctx, authz.Principal{UserID: userID, Role: role})
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom retrieves the request id from the request context.
func RequestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFrom returns the request-scoped logger, or slog.Default().
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
