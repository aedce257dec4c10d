package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type key string

const UserIDKey key = "user_id"

// SessionCookie carries the opaque session token.
const SessionCookie = "mydiary_session"

// SessionResolver maps a session token to a user id. session.Store satisfies it.
type SessionResolver interface {
	Get(ctx context.Context, token string) (int64, error)
}

// Authenticate resolves the caller from the session cookie, or failing that
// from an "Authorization: Bearer <jwt>" header, and stores the user id on
// the request context. Requests without valid credentials pass through
// anonymous; use RequireUser to reject them.
func Authenticate(sessions SessionResolver, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" && sessions != nil {
				if id, err := sessions.Get(r.Context(), c.Value); err == nil {
					next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
					return
				}
			}

			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") && len(secret) > 0 {
				id, err := ParseToken(secret, strings.TrimPrefix(h, "Bearer "))
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
					return
				}
				slog.DebugContext(r.Context(), "bearer token rejected", "error", err)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser answers 401 unless Authenticate resolved a user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserID(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID returns ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetUserID returns the authenticated user id, if any.
func GetUserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok && id > 0
}
