package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentInfo reports which content bundle is currently being served.
type ContentInfo interface {
	ContentVersion() string
	ContentHash() string
}

// ContentHeaders stamps responses with the active content bundle version and
// (truncated) hash, and mirrors both onto the current trace span. Lets us
// tell from any response or trace exactly which bundle a page came from.
func ContentHeaders(info ContentInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if info == nil {
				next.ServeHTTP(w, r)
				return
			}

			v := info.ContentVersion()
			h := info.ContentHash()
			if v != "" {
				w.Header().Set("X-Content-Bundle-Version", v)
			}
			if h != "" {
				if len(h) > 12 {
					h = h[:12]
				}
				w.Header().Set("X-Content-Hash", h)
			}

			if span := trace.SpanFromContext(r.Context()); span != nil && span.IsRecording() {
				if v != "" {
					span.SetAttributes(attribute.String("content.version", v))
				}
				if h != "" {
					span.SetAttributes(attribute.String("content.hash", h))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
