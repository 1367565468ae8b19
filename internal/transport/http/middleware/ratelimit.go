package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/lab-access-api/internal/pkg/ratelimit"
)

// RateLimit enforces the per-(action, client IP) budget and answers 429
// with a Retry-After hint when the budget is spent.
func RateLimit(limiter *ratelimit.Limiter, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := limiter.Allow(action, RealIP(r))
			if !ok {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Round(time.Second).Seconds())))
				writeJSONError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
