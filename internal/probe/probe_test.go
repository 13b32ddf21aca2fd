package probe

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

func failing(reason string) Func {
	return func(context.Context) error { return xerrors.New(reason) }
}

func passing() Func {
	return func(context.Context) error { return nil }
}

func TestStatic(t *testing.T) {
	if err := Static(true, "ignored").Check(t.Context()); err != nil {
		t.Fatalf("ok probe failed: %v", err)
	}

	err := Static(false, "db gone").Check(t.Context())
	if err == nil || err.Error() != "db gone" {
		t.Fatalf("err = %v, want reason preserved", err)
	}

	if err := Static(false, "").Check(t.Context()); err == nil || err.Error() != "unhealthy" {
		t.Fatalf("empty reason should default, got %v", err)
	}
}

func TestMulti(t *testing.T) {
	if err := Multi(passing(), passing()).Check(t.Context()); err != nil {
		t.Fatalf("all-pass should pass: %v", err)
	}

	err := Multi(passing(), failing("first"), failing("second")).Check(t.Context())
	if err == nil || err.Error() != "first" {
		t.Fatalf("err = %v, want the first failure", err)
	}

	if err := Multi(nil, passing(), nil).Check(t.Context()); err != nil {
		t.Fatalf("nil probes must be skipped: %v", err)
	}

	if err := Multi().Check(t.Context()); err != nil {
		t.Fatalf("empty AND should pass: %v", err)
	}
}

func TestAny(t *testing.T) {
	if err := Any(failing("a"), passing()).Check(t.Context()); err != nil {
		t.Fatalf("one-pass should pass: %v", err)
	}

	err := Any(failing("a"), failing("b")).Check(t.Context())
	if err == nil || err.Error() != "b" {
		t.Fatalf("err = %v, want the last failure", err)
	}

	if err := Any().Check(t.Context()); err == nil || !strings.Contains(err.Error(), "no healthy probes") {
		t.Fatalf("empty OR must fail, got %v", err)
	}
}

func TestShutdownGate(t *testing.T) {
	var g ShutdownGate
	p := g.Probe()

	if err := p.Check(t.Context()); err != nil {
		t.Fatalf("fresh gate should pass: %v", err)
	}

	g.Set("sigterm received")
	err := p.Check(t.Context())
	if err == nil || err.Error() != "sigterm received" {
		t.Fatalf("err = %v", err)
	}

	g.Clear()
	if err := p.Check(t.Context()); err != nil {
		t.Fatalf("cleared gate should pass: %v", err)
	}

	g.Set("")
	if err := p.Check(t.Context()); err == nil || err.Error() != "draining" {
		t.Fatalf("empty reason should default to draining, got %v", err)
	}
}

func TestShutdownGate_ConcurrentToggle(t *testing.T) {
	var g ShutdownGate
	p := g.Probe()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				g.Set("drain")
			} else {
				g.Clear()
			}
			p.Check(context.Background())
		}(i)
	}
	wg.Wait()
}
