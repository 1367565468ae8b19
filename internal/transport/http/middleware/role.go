package middleware

import (
	"net/http"

	"github.com/lab-access-api/internal/domain"
)

// RequireRole returns middleware that allows access only to sessions whose
// role matches one of the provided roles. It is the single authorization
// check per endpoint; handlers never re-inspect the role string.
func RequireRole(allowedRoles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range allowedRoles {
				if sess.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "forbidden")
		})
	}
}
