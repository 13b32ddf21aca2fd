package httpmw

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// ClientIPOptions configures client IP resolution.
type ClientIPOptions struct {
	// TrustedHops is the number of reverse proxies between the client and
	// this server that we trust to append to X-Forwarded-For. 0 means the
	// header is ignored entirely, 1 means a single load balancer (rightmost
	// entry), 2 means CDN then load balancer (second from the end), and so
	// on. The resolved IP keys the per-endpoint rate limits, so this must
	// fail closed: a spoofable header would let one client rotate buckets.
	TrustedHops int
}

// ClientIP resolves the client IP with default options (TrustedHops=0,
// X-Forwarded-For ignored) and stores it in the request context.
func ClientIP(next http.Handler) http.Handler {
	return ClientIPWithOptions(ClientIPOptions{})(next)
}

// ClientIPWithOptions returns middleware that resolves the client IP using
// the given options.
func ClientIPWithOptions(opts ClientIPOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientAddr(r, opts.TrustedHops)
			next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
		})
	}
}

// resolveClientAddr picks the client address from RemoteAddr, consulting
// X-Forwarded-For only when the direct peer is a private address (our own
// infrastructure) and trustedHops says how deep the proxy chain is. In every
// distrust path the forwarded headers are stripped so nothing downstream
// accidentally believes them.
func resolveClientAddr(r *http.Request, trustedHops int) string {
	if r.RemoteAddr == "" {
		// net/http always sets RemoteAddr for real connections
		return "0.0.0.0"
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	peer := net.ParseIP(host)
	if peer == nil {
		return "0.0.0.0"
	}

	if !peer.IsPrivate() || trustedHops <= 0 {
		// direct from the internet, or no proxies configured: the peer is
		// the client and forwarded headers are attacker-controlled
		r.Header.Del("X-Forwarded-For")
		r.Header.Del("X-Forwarded-Proto")
		return host
	}

	// Trusted proxies append to X-Forwarded-For, so count from the right:
	// the Nth-from-end entry is what the outermost trusted proxy saw. Fewer
	// entries than proxies means misconfiguration or tampering; fail closed.
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		idx := len(parts) - trustedHops
		if idx < 0 {
			r.Header.Del("X-Forwarded-For")
			r.Header.Del("X-Forwarded-Proto")
			return host
		}
		if candidate := strings.TrimSpace(parts[idx]); net.ParseIP(candidate) != nil {
			host = candidate
		}
	}

	return host
}

// WithClientIP stores a resolved client IP in the context. Empty IPs are not
// stored.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the resolved client IP, or "" if the ClientIP
// middleware did not run.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
