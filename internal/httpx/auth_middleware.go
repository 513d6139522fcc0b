package httpx

import (
	"context"
	"net/http"
	"strings"

	"libraryapi/internal/apperr"
	"libraryapi/internal/platform/crypto"
)

// RevocationChecker reports whether a token id has been revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AccountChecker returns the current role of the account behind a token, or
// an unauthorized error once the account is deactivated or deleted.
type AccountChecker interface {
	CurrentRole(ctx context.Context, userID int64) (string, error)
}

// AuthMiddleware verifies a Bearer token when one is present and stores the
// principal in the request context. Requests without an Authorization header
// pass through anonymously; services decide whether that is enough.
// With accounts set, the role comes from the account rather than the token.
func AuthMiddleware(secret string, revocations RevocationChecker, accounts AccountChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, r)
				return
			}

			claims, err := crypto.ParseToken(secret, token)
			if err != nil {
				unauthorized(w, r)
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				unauthorized(w, r)
				return
			}

			if revocations != nil {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil || revoked {
					unauthorized(w, r)
					return
				}
			}

			role := claims.Role
			if accounts != nil {
				role, err = accounts.CurrentRole(r.Context(), userID)
				if err != nil {
					if apperr.KindOf(err) == apperr.KindUnauthorized {
						unauthorized(w, r)
						return
					}
					WriteError(w, r, err)
					return
				}
			}

			ctx := ContextWithUser(r.Context(), userID, role)
			ctx = ContextWithToken(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Could not validate credentials", nil)
}

type tokenKey struct{}

// ContextWithToken stores the verified claims, used by logout to revoke them.
func ContextWithToken(ctx context.Context, claims *crypto.Claims) context.Context {
	return context.WithValue(ctx, tokenKey{}, claims)
}

func TokenFrom(ctx context.Context) (*crypto.Claims, bool) {
	c, ok := ctx.Value(tokenKey{}).(*crypto.Claims)
	return c, ok
}
