// Package probe provides composable health checks for the liveness and
// readiness endpoints. A probe returning nil is healthy; a non-nil error is
// the reason it is not. Probes compose with Multi (AND) and Any (OR), and
// ShutdownGate fails readiness during drain so load balancers stop routing
// before in-flight requests finish.
package probe

import (
	"context"
	"sync/atomic"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

// Probe is evaluated at request time.
type Probe interface{ Check(context.Context) error }

// Func adapts a function into a Probe.
type Func func(context.Context) error

func (f Func) Check(ctx context.Context) error { return f(ctx) }

// Static returns a probe with a fixed answer.
func Static(ok bool, reason string) Func {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// Multi passes only when every probe passes; the first failure is the
// reported reason. Nil probes are skipped.
func Multi(ps ...Probe) Func {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Any passes when at least one probe passes. When all fail the last failure
// is reported; with no probes at all the result is a failure, not a pass.
func Any(ps ...Probe) Func {
	return func(ctx context.Context) error {
		var last error
		ok := false
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				last = err
			} else {
				ok = true
			}
		}
		if ok {
			return nil
		}
		if last != nil {
			return last
		}
		return xerrors.New("no healthy probes")
	}
}

// ShutdownGate flips readiness to failing for the duration of a drain.
type ShutdownGate struct {
	draining atomic.Bool
	reason   atomic.Value
}

// Set marks the gate as draining with the given reason.
func (g *ShutdownGate) Set(reason string) {
	g.draining.Store(true)
	g.reason.Store(reason)
}

// Clear reopens the gate.
func (g *ShutdownGate) Clear() {
	g.draining.Store(false)
	g.reason.Store("")
}

// Probe returns the gate as a readiness probe.
func (g *ShutdownGate) Probe() Func {
	return func(context.Context) error {
		if !g.draining.Load() {
			return nil
		}
		r, _ := g.reason.Load().(string)
		if r == "" {
			r = "draining"
		}
		return xerrors.New(r)
	}
}
