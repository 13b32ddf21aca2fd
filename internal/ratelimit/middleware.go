package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/clarus-app/clarus-web/internal/httpmw"
)

// Middleware returns middleware that rejects requests over the limit with
// 429. Requests are keyed by endpoint plus resolved client IP, so one
// endpoint's quota never bleeds into another's and one client cannot exhaust
// a route for everyone.
func (l *Limiter) Middleware(endpoint string, cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// use the httpmw resolver, which has the x-forwarded-for trust
			// logic; an empty IP just shares the endpoint's anonymous bucket
			ip := httpmw.ClientIPFromContext(r.Context())

			d := l.CheckWith(endpoint+":"+ip, cfg)
			if d.Limited {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"too many requests","retry_after_ms":%d}`, d.RetryAfter.Milliseconds())
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up so clients never retry before a slot frees.
func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}
