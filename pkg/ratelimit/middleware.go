package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/dmitrymomot/loginkit/pkg/clientip"
)

// Middleware enforces the limiter per client address. It fails open: a
// missing address or a store error lets the request through rather than
// turning a storage outage into a site outage.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientip.GetIPFromContext(r.Context())
			if addr == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), "ratelimit:"+addr)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			if !result.Allowed {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
