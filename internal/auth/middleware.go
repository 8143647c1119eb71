// internal/auth/middleware.go
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

type contextKey struct{}

// UserResolver is satisfied by Authenticator and by test doubles.
type UserResolver interface {
	CurrentUserID(r *http.Request) (int64, error)
}

// WithUserID stores the authenticated user on ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the user stored by Middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok && id > 0
}

// Middleware rejects unauthenticated requests with 401 and otherwise puts
// the user id on the request context.
func Middleware(resolver UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolver.CurrentUserID(r)
			if err != nil {
				logger.Debug("rejecting unauthenticated request", "path", r.URL.Path, "error", err)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": ErrUnauthenticated.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
