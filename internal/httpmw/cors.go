package httpmw

import "net/http"

// CORSOptions configures cross-origin access for the API routes.
type CORSOptions struct {
	// AllowedOrigins is the exact-match origin allowlist. Empty means
	// same-origin only: no CORS headers are emitted and browsers block
	// cross-origin reads.
	AllowedOrigins []string
}

// CORS handles preflight requests and emits CORS headers for allowlisted
// origins. The allowlist is exact-match; there is deliberately no wildcard
// support since the API is consumed by our own front-end origins only.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := allowed[origin]; !ok {
				// unknown origin: answer preflights with 403, let the
				// browser enforce the rest by the absence of CORS headers
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			// caches must not serve one origin's response to another
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, X-User-Id, X-Request-Id")
				h.Set("Access-Control-Expose-Headers", "X-RateLimit-Remaining, Retry-After, X-Request-Id")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			h.Set("Access-Control-Expose-Headers", "X-RateLimit-Remaining, Retry-After, X-Request-Id")
			next.ServeHTTP(w, r)
		})
	}
}
