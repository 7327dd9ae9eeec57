package middleware

import (
	"net/http"
	"strconv"
	"time"

	"quillaborn/backend/internal/httpx"
	"quillaborn/backend/internal/ratelimit"
)

// RateLimit applies a per-IP fixed-window limit to the wrapped routes. Blocked
// requests answer 429 with Retry-After; allowed ones carry the usual
// X-RateLimit headers.
func RateLimit(limiter ratelimit.Limiter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := limiter.Allow(r.Context(), httpx.ClientIP(r), limit)
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				retryAfter := int64(time.Until(d.ResetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				httpx.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
