package ratelimit

import (
	"sync"
	"time"
)

// Defaults applied when a Config field is zero.
const (
	DefaultMaxRequests = 60
	DefaultWindow      = time.Minute

	// DefaultCleanupInterval bounds how often the full-map sweep runs,
	// regardless of call volume.
	DefaultCleanupInterval = 5 * time.Minute
)

// Config is a per-endpoint limit: at most MaxRequests admitted within any
// trailing Window. Zero fields fall back to the limiter defaults.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Decision is the outcome of a single Check.
// Limited=false means the request was admitted and counted; Remaining is the
// quota left in the current window including this request. Limited=true means
// the request was rejected and not counted; RetryAfter is how long until the
// oldest counted request ages out and frees a slot (always > 0 on rejection).
type Decision struct {
	Limited    bool
	Remaining  int
	RetryAfter time.Duration
}

// entry tracks one key: the timestamps of admitted requests, oldest first,
// and the window that was in effect on the key's most recent check. The
// window is kept per key so the periodic sweep prunes each key against its
// own limit, not whichever config happened to trigger the sweep.
type entry struct {
	stamps []time.Time
	window time.Duration

	// denialLogged gates OnFirstDenied; resets when the entry is evicted.
	denialLogged bool
}

// Limiter holds per-key request timestamps. Each instance owns its map and
// its cleanup cadence; independent instances never share state.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry

	defaults        Config
	cleanupInterval time.Duration
	lastCleanup     time.Time

	now func() time.Time

	// OnDenied is called on every rejected check, used for incrementing
	// prometheus counters.
	OnDenied func(key string)

	// OnFirstDenied is called once per key when it first gets rejected,
	// resetting when the entry is evicted. Used for single-log-entry-per-
	// offender logging to prevent log spam.
	OnFirstDenied func(key string)
}

type Option func(*Limiter)

// WithDefaults sets the limit applied by Check when no per-call config is
// given. Zero fields keep the package defaults.
func WithDefaults(cfg Config) Option {
	return func(l *Limiter) {
		if cfg.MaxRequests > 0 {
			l.defaults.MaxRequests = cfg.MaxRequests
		}
		if cfg.Window > 0 {
			l.defaults.Window = cfg.Window
		}
	}
}

// WithCleanupInterval controls how often the opportunistic full-map sweep may
// run. Checks between sweeps still filter their own key, so stale entries are
// never counted; the sweep only bounds memory.
func WithCleanupInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.cleanupInterval = d
		}
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithOnDenied sets a callback for every rejected check.
func WithOnDenied(fn func(key string)) Option {
	return func(l *Limiter) { l.OnDenied = fn }
}

// WithOnFirstDenied sets a callback for the first rejection per key.
// Intentionally separate from OnDenied to allow different handling - we log
// once, but increment counters on each rejection.
func WithOnFirstDenied(fn func(key string)) Option {
	return func(l *Limiter) { l.OnFirstDenied = fn }
}

// New creates a Limiter. There is no background goroutine: cleanup is
// call-triggered and rate-limited by the cleanup interval, so an idle limiter
// costs nothing.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		defaults: Config{
			MaxRequests: DefaultMaxRequests,
			Window:      DefaultWindow,
		},
		cleanupInterval: DefaultCleanupInterval,
		now:             time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	// start the cleanup clock at construction so the first check doesn't
	// sweep an empty map
	l.lastCleanup = l.now()
	return l
}

// Check decides whether a request under key may proceed using the limiter's
// default config. Any string is a valid key, including empty; unknown keys
// simply get their own independent counter.
func (l *Limiter) Check(key string) Decision {
	return l.CheckWith(key, Config{})
}

// CheckWith is Check with a per-call limit override. Zero fields of cfg fall
// back to the limiter defaults.
func (l *Limiter) CheckWith(key string, cfg Config) Decision {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = l.defaults.MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = l.defaults.Window
	}

	l.mu.Lock()
	now := l.now()
	cutoff := now.Add(-cfg.Window)

	l.sweepLocked(now)

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.window = cfg.Window

	// keep only timestamps strictly inside the trailing window; stamps are
	// oldest-first so this preserves order
	valid := e.stamps[:0]
	for _, ts := range e.stamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= cfg.MaxRequests {
		// rejected requests are not recorded: only admitted traffic counts
		// against the window
		oldest := valid[0]
		e.stamps = valid
		firstDenial := !e.denialLogged
		e.denialLogged = true

		onDenied := l.OnDenied
		onFirst := l.OnFirstDenied
		// release before hooks, they may do slow work
		l.mu.Unlock()

		if firstDenial && onFirst != nil {
			onFirst(key)
		}
		if onDenied != nil {
			onDenied(key)
		}

		return Decision{
			Limited:    true,
			Remaining:  0,
			RetryAfter: oldest.Add(cfg.Window).Sub(now),
		}
	}

	e.stamps = append(valid, now)
	remaining := cfg.MaxRequests - len(e.stamps)
	l.mu.Unlock()

	return Decision{Limited: false, Remaining: remaining}
}

// Len reports the number of tracked keys. Used by tests and the keys gauge.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// sweepLocked prunes every key against its own window and evicts keys whose
// timestamps have all aged out, bounding the map to recently active keys.
// Runs at most once per cleanup interval. Caller holds l.mu.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastCleanup) < l.cleanupInterval {
		return
	}
	l.lastCleanup = now

	for key, e := range l.entries {
		cutoff := now.Add(-e.window)
		valid := e.stamps[:0]
		for _, ts := range e.stamps {
			if ts.After(cutoff) {
				valid = append(valid, ts)
			}
		}
		if len(valid) == 0 {
			delete(l.entries, key)
			continue
		}
		e.stamps = valid
	}
}
