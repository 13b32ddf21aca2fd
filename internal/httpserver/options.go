package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clarus-app/clarus-web/internal/httpmw"
	"github.com/clarus-app/clarus-web/internal/log"
	"github.com/clarus-app/clarus-web/internal/probe"
)

type Options struct {
	Logger log.Logger
	Port   int

	// ClientIPOpts decides whether X-Forwarded-For is trusted; the resolved
	// IP keys the per-endpoint rate limits.
	ClientIPOpts httpmw.ClientIPOptions

	UseRecoverMW bool
	// OnPanic runs after a recovered panic is logged (panic counter).
	OnPanic func()

	MetricsMW func(http.Handler) http.Handler

	Health    probe.Probe
	Readiness probe.Probe

	// APIRoutes mounts the /api subrouter (handlers, CORS, rate limits).
	APIRoutes func(chi.Router)

	// SiteHandler serves everything no explicit route claims (content pages
	// and static assets).
	SiteHandler http.Handler

	// ContentInfo feeds the X-Content-Bundle-Version / X-Content-Hash
	// response headers.
	ContentInfo httpmw.ContentInfo
}
