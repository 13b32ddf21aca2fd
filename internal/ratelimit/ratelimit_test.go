package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clarus-app/clarus-web/internal/httpmw"
)

// fakeClock is a mutable time source so window expiry can be simulated
// without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	// arbitrary fixed base; tests reason in offsets from it
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(clk *fakeClock, opts ...Option) *Limiter {
	defaults := []Option{
		WithClock(clk.Now),
		WithDefaults(Config{MaxRequests: 3, Window: time.Minute}),
	}
	return New(append(defaults, opts...)...)
}

func TestCheck_AdmitsUpToMaxThenRejects(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	for i := 0; i < 3; i++ {
		d := l.Check("k")
		if d.Limited {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}

	d := l.Check("k")
	if !d.Limited {
		t.Fatal("request 4 should be rejected (window full)")
	}
	if d.Remaining != 0 {
		t.Fatalf("rejected Remaining = %d, want 0", d.Remaining)
	}
}

func TestCheck_RemainingCountsDown(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	want := []int{2, 1, 0}
	for i, w := range want {
		d := l.Check("k")
		if d.Limited {
			t.Fatalf("request %d should be admitted", i+1)
		}
		if d.Remaining != w {
			t.Fatalf("request %d: Remaining = %d, want %d", i+1, d.Remaining, w)
		}
	}
}

func TestCheck_RetryAfterFromOldestEntry(t *testing.T) {
	// the concrete scenario: limit 3/60s, admits at t=0,10,20ms, reject at
	// t=30ms must say retry in 59970ms
	clk := newFakeClock()
	l := newTestLimiter(clk)

	l.Check("k") // t=0
	clk.Advance(10 * time.Millisecond)
	l.Check("k") // t=10ms
	clk.Advance(10 * time.Millisecond)
	l.Check("k") // t=20ms
	clk.Advance(10 * time.Millisecond)

	d := l.Check("k") // t=30ms
	if !d.Limited {
		t.Fatal("4th call within window should be rejected")
	}
	if want := 59970 * time.Millisecond; d.RetryAfter != want {
		t.Fatalf("RetryAfter = %v, want %v", d.RetryAfter, want)
	}
	if d.RetryAfter <= 0 {
		t.Fatal("RetryAfter must be positive on rejection")
	}
}

func TestCheck_SlotFreesWhenOldestExpires(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	l.Check("k") // t=0
	l.Check("k")
	l.Check("k")
	if d := l.Check("k"); !d.Limited {
		t.Fatal("should be rejected while window is full")
	}

	// one past the first entry's expiry: strictly-greater filtering means
	// the t=0 stamp no longer counts
	clk.Advance(60001 * time.Millisecond)

	d := l.Check("k")
	if d.Limited {
		t.Fatal("should be admitted after the oldest entry aged out")
	}
}

func TestCheck_RejectionsAreNotRecorded(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	l.Check("k")
	l.Check("k")
	l.Check("k")

	// hammer rejections; they must not extend the window
	for i := 0; i < 50; i++ {
		clk.Advance(time.Millisecond)
		if d := l.Check("k"); !d.Limited {
			t.Fatalf("rejection %d: should still be limited", i+1)
		}
	}

	// the three admitted stamps were all within ~50ms of base; jump past
	// the full window from base and everything frees up
	clk.Advance(time.Minute)
	d := l.Check("k")
	if d.Limited {
		t.Fatal("rejected calls must not count against the window")
	}
	if d.Remaining != 2 {
		t.Fatalf("Remaining = %d, want 2 (window empty before this call)", d.Remaining)
	}
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	for i := 0; i < 3; i++ {
		l.Check("a")
	}
	if d := l.Check("a"); !d.Limited {
		t.Fatal("key a should be exhausted")
	}
	if d := l.Check("b"); d.Limited {
		t.Fatal("key b must be unaffected by key a's quota")
	}
}

func TestCheck_EmptyKeyGetsOwnBucket(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	for i := 0; i < 3; i++ {
		if d := l.Check(""); d.Limited {
			t.Fatalf("empty-key request %d should be admitted", i+1)
		}
	}
	if d := l.Check(""); !d.Limited {
		t.Fatal("empty key still gets limited like any other key")
	}
	if d := l.Check("named"); d.Limited {
		t.Fatal("named key independent of empty key")
	}
}

func TestCheckWith_PerCallOverride(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk) // defaults 3/min

	cfg := Config{MaxRequests: 1, Window: 10 * time.Second}
	if d := l.CheckWith("k", cfg); d.Limited {
		t.Fatal("first call under override should be admitted")
	}
	if d := l.CheckWith("k", cfg); !d.Limited {
		t.Fatal("second call should hit the 1-request override")
	}

	clk.Advance(10*time.Second + time.Millisecond)
	if d := l.CheckWith("k", cfg); d.Limited {
		t.Fatal("override window elapsed, should be admitted")
	}
}

func TestCheckWith_ZeroFieldsFallBackToDefaults(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	// MaxRequests given, Window zero -> default window applies
	cfg := Config{MaxRequests: 2}
	l.CheckWith("k", cfg)
	l.CheckWith("k", cfg)
	d := l.CheckWith("k", cfg)
	if !d.Limited {
		t.Fatal("should be limited at the overridden max")
	}
	if want := time.Minute; d.RetryAfter != want {
		t.Fatalf("RetryAfter = %v, want %v (default window)", d.RetryAfter, want)
	}
}

func TestDefaults(t *testing.T) {
	l := New()

	if l.defaults.MaxRequests != 60 {
		t.Errorf("default MaxRequests = %d, want 60", l.defaults.MaxRequests)
	}
	if l.defaults.Window != time.Minute {
		t.Errorf("default Window = %v, want 1m", l.defaults.Window)
	}
	if l.cleanupInterval != 5*time.Minute {
		t.Errorf("default cleanup interval = %v, want 5m", l.cleanupInterval)
	}
}

func TestInstancesDoNotShareState(t *testing.T) {
	clk := newFakeClock()
	a := newTestLimiter(clk)
	b := newTestLimiter(clk)

	for i := 0; i < 3; i++ {
		a.Check("k")
	}
	if d := a.Check("k"); !d.Limited {
		t.Fatal("instance a should be exhausted")
	}
	if d := b.Check("k"); d.Limited {
		t.Fatal("instance b owns a private map and must admit")
	}
}

// Cleanup behavior

func TestSweep_EvictsIdleKeys(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk, WithCleanupInterval(5*time.Minute))

	l.Check("idle")
	l.Check("busy")

	if got := l.Len(); got != 2 {
		t.Fatalf("tracked keys = %d, want 2", got)
	}

	// past both the window and the cleanup interval; the next check for
	// any key triggers the sweep
	clk.Advance(6 * time.Minute)
	l.Check("busy")

	if got := l.Len(); got != 1 {
		t.Fatalf("tracked keys after sweep = %d, want 1 (idle evicted)", got)
	}
}

func TestSweep_GatedByInterval(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk, WithCleanupInterval(5*time.Minute))

	l.Check("idle")

	// well past the window but inside the cleanup interval: the idle key's
	// entry survives (stale entries may transiently remain between sweeps)
	clk.Advance(2 * time.Minute)
	l.Check("other")
	if got := l.Len(); got != 2 {
		t.Fatalf("tracked keys = %d, want 2 (sweep must not have run)", got)
	}
}

func TestSweep_UsesEachKeysOwnWindow(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk, WithCleanupInterval(time.Minute))

	// shortKey checked with a 1s window, longKey with a 10m window
	l.CheckWith("short", Config{MaxRequests: 5, Window: time.Second})
	l.CheckWith("long", Config{MaxRequests: 5, Window: 10 * time.Minute})

	// after 2 minutes the short key's stamp is long expired, the long
	// key's is still live; trigger a sweep via a third key
	clk.Advance(2 * time.Minute)
	l.Check("trigger")

	if got := l.Len(); got != 2 {
		t.Fatalf("tracked keys = %d, want 2 (short evicted, long retained)", got)
	}
	l.mu.Lock()
	_, shortAlive := l.entries["short"]
	_, longAlive := l.entries["long"]
	l.mu.Unlock()
	if shortAlive {
		t.Error("short-window key should have been evicted with its own window")
	}
	if !longAlive {
		t.Error("long-window key must survive the sweep")
	}
}

func TestSweep_DoesNotChangeOutcomes(t *testing.T) {
	// run the same call sequence with and without a forced sweep in the
	// middle; decisions must be identical
	run := func(forceSweep bool) []bool {
		clk := newFakeClock()
		interval := 5 * time.Minute
		if forceSweep {
			interval = time.Millisecond
		}
		l := newTestLimiter(clk, WithCleanupInterval(interval))

		var out []bool
		for i := 0; i < 6; i++ {
			d := l.Check("k")
			out = append(out, d.Limited)
			clk.Advance(10 * time.Millisecond)
		}
		clk.Advance(time.Minute)
		out = append(out, l.Check("k").Limited)
		return out
	}

	plain := run(false)
	swept := run(true)
	for i := range plain {
		if plain[i] != swept[i] {
			t.Fatalf("call %d: outcome with sweep %v != without %v", i, swept[i], plain[i])
		}
	}
}

// Callbacks

func TestOnDenied_CalledEveryRejection(t *testing.T) {
	var denied atomic.Int32
	clk := newFakeClock()
	l := newTestLimiter(clk, WithOnDenied(func(string) { denied.Add(1) }))

	for i := 0; i < 3; i++ {
		l.Check("k")
	}
	for i := 0; i < 5; i++ {
		l.Check("k")
	}

	if got := denied.Load(); got != 5 {
		t.Fatalf("OnDenied called %d times, want 5", got)
	}
}

func TestOnFirstDenied_OncePerKeyUntilEviction(t *testing.T) {
	var first atomic.Int32
	clk := newFakeClock()
	l := newTestLimiter(clk,
		WithCleanupInterval(time.Minute),
		WithOnFirstDenied(func(string) { first.Add(1) }),
	)

	for i := 0; i < 3; i++ {
		l.Check("k")
	}
	l.Check("k") // first rejection
	l.Check("k") // repeat rejection, no callback

	if got := first.Load(); got != 1 {
		t.Fatalf("OnFirstDenied = %d, want 1", got)
	}

	// evict and re-offend: fires again for the fresh entry
	clk.Advance(2 * time.Minute)
	l.Check("other") // trigger sweep
	for i := 0; i < 3; i++ {
		l.Check("k")
	}
	l.Check("k")

	if got := first.Load(); got != 2 {
		t.Fatalf("OnFirstDenied after eviction = %d, want 2", got)
	}
}

func TestNilCallbacks_NoPanic(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	for i := 0; i < 5; i++ {
		l.Check("k")
	}
}

func TestConcurrentChecks_NeverExceedMax(t *testing.T) {
	l := New(WithDefaults(Config{MaxRequests: 50, Window: time.Minute}))

	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := l.Check("shared"); !d.Limited {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 50 {
		t.Fatalf("admitted = %d, want exactly 50", got)
	}
}

func TestConcurrentChecks_DistinctKeys(t *testing.T) {
	l := New(WithDefaults(Config{MaxRequests: 1, Window: time.Minute}))

	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n)
			if d := l.Check(key); !d.Limited {
				admitted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := admitted.Load(); got != 100 {
		t.Fatalf("admitted = %d, want 100 (one per key)", got)
	}
	if got := l.Len(); got != 100 {
		t.Fatalf("tracked keys = %d, want 100", got)
	}
}

// Middleware HTTP tests
//
// Client IP is injected via httpmw.WithClientIP - no dependency on the
// ClientIP middleware's XFF parsing or trust logic.

func makeRequestWithIP(handler http.Handler, clientIP string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(httpmw.WithClientIP(r.Context(), clientIP))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestMiddleware_Returns429WithRetryHint(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := l.Middleware("videos", Config{MaxRequests: 2, Window: time.Minute})(inner)

	for i := 0; i < 2; i++ {
		w := makeRequestWithIP(handler, "203.0.113.1")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i+1, w.Code)
		}
	}

	w := makeRequestWithIP(handler, "203.0.113.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request 3: got %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", w.Header().Get("X-RateLimit-Remaining"))
	}
	if w.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
	want := `{"error":"too many requests","retry_after_ms":60000}`
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestMiddleware_RemainingHeaderOnAdmit(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := l.Middleware("videos", Config{MaxRequests: 3, Window: time.Minute})(inner)

	want := []string{"2", "1", "0"}
	for i, w := range want {
		rec := makeRequestWithIP(handler, "203.0.113.1")
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != w {
			t.Fatalf("request %d: X-RateLimit-Remaining = %q, want %q", i+1, got, w)
		}
	}
}

func TestMiddleware_DifferentIPsIndependent(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := l.Middleware("scrape", Config{MaxRequests: 1, Window: time.Minute})(inner)

	makeRequestWithIP(handler, "203.0.113.1")
	if w := makeRequestWithIP(handler, "203.0.113.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("ip1 second request: got %d, want 429", w.Code)
	}
	if w := makeRequestWithIP(handler, "203.0.113.2"); w.Code != http.StatusOK {
		t.Fatalf("ip2 first request: got %d, want 200", w.Code)
	}
}

func TestMiddleware_EndpointsHaveSeparateQuotas(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	cfg := Config{MaxRequests: 1, Window: time.Minute}
	scrape := l.Middleware("scrape", cfg)(ok)
	videos := l.Middleware("videos", cfg)(ok)

	makeRequestWithIP(scrape, "203.0.113.1")
	if w := makeRequestWithIP(scrape, "203.0.113.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("scrape second request: got %d, want 429", w.Code)
	}
	// same IP, different endpoint: fresh quota
	if w := makeRequestWithIP(videos, "203.0.113.1"); w.Code != http.StatusOK {
		t.Fatalf("videos first request: got %d, want 200", w.Code)
	}
}

func TestMiddleware_DeniedRequestDoesNotReachHandler(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	var reached atomic.Int32
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached.Add(1)
	})
	handler := l.Middleware("scrape", Config{MaxRequests: 1, Window: time.Minute})(inner)

	makeRequestWithIP(handler, "203.0.113.1")
	makeRequestWithIP(handler, "203.0.113.1")
	makeRequestWithIP(handler, "203.0.113.1")

	if got := reached.Load(); got != 1 {
		t.Fatalf("inner handler reached %d times, want 1", got)
	}
}

func TestMiddleware_SubSecondRetryAfterRoundsUpToOne(t *testing.T) {
	clk := newFakeClock()
	l := newTestLimiter(clk)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := l.Middleware("e", Config{MaxRequests: 1, Window: 500 * time.Millisecond})(inner)

	makeRequestWithIP(handler, "203.0.113.1")
	w := makeRequestWithIP(handler, "203.0.113.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q, want 1 (rounded up)", got)
	}
}
