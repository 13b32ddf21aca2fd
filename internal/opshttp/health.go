package opshttp

import (
	"net/http"

	"github.com/clarus-app/clarus-web/internal/probe"
)

// probeHandler answers 200 with okBody when the probe passes and 503 with
// the probe's reason otherwise. A nil probe always passes.
func probeHandler(p probe.Probe, okBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte(okBody))
	}
}

func HealthzHandler(p probe.Probe) http.HandlerFunc { return probeHandler(p, "ok\n") }

func ReadyzHandler(p probe.Probe) http.HandlerFunc { return probeHandler(p, "ready\n") }
