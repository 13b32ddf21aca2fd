package opshttp

import (
	"net/http"

	"github.com/clarus-app/clarus-web/internal/probe"
)

type Options struct {
	Port int

	// Metrics is the promhttp handler mounted at /metrics.
	Metrics http.Handler

	// EnablePprof mounts the pprof handlers under /debug/pprof/. When off
	// the prefix 404s explicitly rather than falling through.
	EnablePprof bool

	Health    probe.Probe
	Readiness probe.Probe
}
