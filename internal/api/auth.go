package api

import (
	"errors"
	"net/http"

	"github.com/kalambet/docmind/internal/auth"
	"github.com/kalambet/docmind/internal/storage"
)

// TokenVerifier resolves a raw token to a user id.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// UserResolver loads the user a token refers to.
type UserResolver interface {
	Get(id string) (storage.User, error)
}

// RequireUser authenticates the request from its bearer header, jwt cookie
// or token query parameter and stores the user in the request context.
func RequireUser(tokens TokenVerifier, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := auth.TokenFromRequest(r)
			if raw == "" {
				httpError(w, http.StatusUnauthorized, "authentication_error", "missing token")
				return
			}
			id, err := tokens.Verify(raw)
			if err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid token")
				return
			}
			u, err := users.Get(id)
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "unknown user")
				return
			}
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to load user: %v", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), u)))
		})
	}
}

// currentUser returns the authenticated user. RequireUser guarantees it is set.
func currentUser(r *http.Request) storage.User {
	u, _ := auth.UserFromContext(r.Context())
	return u
}
