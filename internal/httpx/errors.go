package httpx

import (
	"log/slog"
	"net/http"

	"libraryapi/internal/apperr"
)

// StatusOf maps an error kind onto an HTTP status and error code.
// Conflicts are reported as 400 like every other rejected request.
func StatusOf(err error) (int, string) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case apperr.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case apperr.KindConflict:
		return http.StatusBadRequest, "CONFLICT"
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case apperr.KindForbidden:
		return http.StatusForbidden, "FORBIDDEN"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// WriteError renders err as an error envelope. Internal errors are logged and
// replaced by a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusOf(err)
	if status == http.StatusInternalServerError {
		LoggerFrom(r.Context()).Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	JSONError(w, r, status, code, apperr.MessageOf(err), nil)
}

// BadRequest writes a 400 for a body that could not be decoded.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", message, nil)
}

// InvalidInput writes a 400 carrying field-level validation details.
func InvalidInput(w http.ResponseWriter, r *http.Request, details []ErrorDetail) {
	JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)
}
