package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey struct{}

// WithUser returns a context carrying username.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, contextKey{}, username)
}

// UserFromContext returns the signed-in username, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(contextKey{}).(string)
	return u, ok && u != ""
}

// Middleware resolves the session cookie into the request context. Requests
// without a valid session pass through anonymously.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			if username, err := s.ParseToken(c.Value); err == nil {
				r = r.WithContext(WithUser(r.Context(), username))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects requests without a signed-in user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			deny(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin accepts only "Authorization: Bearer <token>". An empty token
// disables the admin routes.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				deny(w, http.StatusForbidden, "admin access is disabled")
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				deny(w, http.StatusUnauthorized, "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
