// Package httpmw provides HTTP middleware for the public-facing server.
//
// The chain is assembled in httpserver.NewHandler: security headers, panic
// recovery, request ID, client IP resolution, OTEL tracing, content version
// headers, metrics, structured logging, then the chi router. API routes add
// CORS and per-endpoint rate limiting inside the router.
//
// Each middleware is an independent function that can be tested, reordered,
// or removed individually. User-supplied data (query params, user-agent,
// headers) is intentionally excluded from logs to prevent PII leaks and
// log injection.
package httpmw
