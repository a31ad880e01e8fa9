package auth

import (
	"context"

	"github.com/kalambet/docmind/internal/storage"
)

type userCtxKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u storage.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (storage.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(storage.User)
	return u, ok
}
