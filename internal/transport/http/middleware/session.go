package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lab-access-api/internal/domain"
)

type contextKey string

const SessionKey contextKey = "session"

// CookieName is the session cookie set on verify-code and staff login.
const CookieName = "lab_session"

// SessionLoader resolves a session id to an active session. Expired sessions
// come back as errors; the loader has already destroyed them server-side.
type SessionLoader interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Session returns middleware that loads the session addressed by the cookie
// into the request context. Requests without an active session get 401.
func Session(loader SessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				writeJSONError(w, http.StatusUnauthorized, "no session")
				return
			}
			sess, err := loader.Get(r.Context(), cookie.Value)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "session expired or unknown")
				return
			}
			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext extracts the loaded session from the request context.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(SessionKey).(*domain.Session)
	return s, ok
}

// RealIP extracts the originating client IP for rate-limit keying.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-Ip"); rip != "" {
		return rip
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
