// Package ratelimit provides a per-key sliding-window rate limiter for the
// public API routes.
//
// This is a single-instance, in-memory limiter intended for basic abuse
// prevention on a single server. It does not protect against distributed
// attacks or coordinate limits across replicas. For those, use an upstream
// WAF or CDN-level rate limiting.
//
// Unlike a token bucket, the limiter keeps the actual timestamps of admitted
// requests and counts how many fall inside the trailing window on every
// check. That makes the "at most N requests in any W-wide trailing interval"
// guarantee exact: there is no boundary-doubling burst the way fixed-bucket
// counters allow, and rejected callers get a precise retry-after derived from
// the oldest still-counted request.
package ratelimit
