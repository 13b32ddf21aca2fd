package content

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/clarus-app/clarus-web/internal/cryptoutil"
	"github.com/clarus-app/clarus-web/internal/log"
)

const (
	// DefaultPollInterval is how often the watcher asks SSM for the
	// current release digest.
	DefaultPollInterval = 30 * time.Second

	// maxBackoff caps the exponential backoff after repeated SSM errors.
	maxBackoff = 5 * time.Minute
)

type pollResult int

const (
	pollNoChange        pollResult = iota // digest unchanged
	pollSwapped                           // new bundle is live
	pollSSMError                          // release lookup failed, back off
	pollLoadError                         // download/verify/extract failed
	pollValidationError                   // bundle loaded but was rejected
)

// BundleFetcher is the slice of Loader the watcher uses; an interface so
// tests can drive the poll loop without AWS.
type BundleFetcher interface {
	FetchReleaseHash(ctx context.Context) (string, error)
	LoadHash(ctx context.Context, hash string) (*Snapshot, error)
}

// WatcherMetrics is implemented by the metrics package.
type WatcherMetrics interface {
	IncWatcherPolls()
	IncWatcherSwaps()
	IncWatcherError(errType string)
	ObserveBundleLoadDuration(seconds float64)
	SetWatcherLastSuccess(unixSeconds float64)
	SetWatcherStale(stale bool)
}

type WatcherOptions struct {
	Logger       log.Logger
	Loader       BundleFetcher
	Manager      *Manager
	PollInterval time.Duration

	// Validation defaults to DefaultValidationOptions when nil.
	Validation *ValidationOptions

	// OnSwap runs synchronously on the poll goroutine after a successful
	// swap.
	OnSwap func(hash, version string)

	Metrics WatcherMetrics

	// StaleThreshold is how long without a successful SSM poll before the
	// watcher raises a staleness error. Zero means 30 minutes.
	StaleThreshold time.Duration
}

// Watcher polls for release changes and hot-swaps verified bundles into the
// manager. Old snapshots are plain memory; they disappear with GC once no
// request holds them.
type Watcher struct {
	loader     BundleFetcher
	manager    *Manager
	logger     log.Logger
	interval   time.Duration
	validation ValidationOptions
	onSwap     func(hash, version string)
	metrics    WatcherMetrics

	currentHash string

	consecutiveErrs int

	staleThreshold time.Duration
	lastSuccessAt  time.Time
	staleLogged    bool

	pollCount int64
	swapCount int64
}

func NewWatcher(opts *WatcherOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	// seed from the manager so the first poll does not re-download what
	// startup already loaded
	currentHash := ""
	if snap, ok := opts.Manager.Get(); ok {
		currentHash = snap.Meta.SHA256
	}

	validation := DefaultValidationOptions()
	if opts.Validation != nil {
		validation = *opts.Validation
	}

	staleThreshold := opts.StaleThreshold
	if staleThreshold <= 0 {
		staleThreshold = 30 * time.Minute
	}

	return &Watcher{
		loader:         opts.Loader,
		manager:        opts.Manager,
		logger:         opts.Logger,
		interval:       interval,
		validation:     validation,
		onSwap:         opts.OnSwap,
		metrics:        opts.Metrics,
		currentHash:    currentHash,
		staleThreshold: staleThreshold,
		lastSuccessAt:  time.Now(),
	}
}

// Run blocks until ctx is cancelled. Launch as `go watcher.Run(ctx)`.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info(ctx, "content watcher starting",
		"poll_interval", w.interval.String(),
		"current_hash", truncHash(w.currentHash),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "content watcher stopping",
				"reason", ctx.Err(),
				"polls", w.pollCount,
				"swaps", w.swapCount,
			)
			return ctx.Err()
		case <-ticker.C:
			result := w.checkOnce(ctx)

			if result == pollSSMError {
				w.consecutiveErrs++
				backoff := w.backoffDuration()
				w.logger.Warn(ctx, "content watcher backing off",
					"consecutive_errors", w.consecutiveErrs,
					"next_poll_in", backoff.String(),
				)
				ticker.Reset(backoff)
			} else if w.consecutiveErrs > 0 {
				w.logger.Info(ctx, "content watcher recovered, normal cadence",
					"had_consecutive_errors", w.consecutiveErrs,
				)
				w.consecutiveErrs = 0
				ticker.Reset(w.interval)
			}

			// staleness transitions are logged once per direction, not
			// per poll
			if result != pollSSMError {
				if w.staleLogged {
					w.logger.Info(ctx, "content watcher staleness recovered")
					w.staleLogged = false
					if w.metrics != nil {
						w.metrics.SetWatcherStale(false)
					}
				}
			} else if time.Since(w.lastSuccessAt) > w.staleThreshold && !w.staleLogged {
				w.logger.Error(ctx,
					fmt.Errorf("last successful release poll was %s ago", time.Since(w.lastSuccessAt).Truncate(time.Second)),
					"content watcher cannot verify freshness",
				)
				w.staleLogged = true
				if w.metrics != nil {
					w.metrics.SetWatcherStale(true)
				}
			}
		}
	}
}

// checkOnce runs one poll-compare-swap cycle.
func (w *Watcher) checkOnce(ctx context.Context) pollResult {
	w.pollCount++
	if w.metrics != nil {
		w.metrics.IncWatcherPolls()
	}

	hash, err := w.loader.FetchReleaseHash(ctx)
	if err != nil {
		w.logger.Error(ctx, err, "content watcher release poll failed")
		if w.metrics != nil {
			w.metrics.IncWatcherError("ssm")
		}
		return pollSSMError
	}

	now := time.Now()
	w.lastSuccessAt = now
	if w.metrics != nil {
		w.metrics.SetWatcherLastSuccess(float64(now.Unix()))
	}

	if cryptoutil.HashEqual(hash, w.currentHash) {
		return pollNoChange
	}

	w.logger.Info(ctx, "new content release detected",
		"old_hash", truncHash(w.currentHash),
		"new_hash", truncHash(hash),
	)

	loadStart := time.Now()
	snap, err := w.loader.LoadHash(ctx, hash)
	if w.metrics != nil {
		w.metrics.ObserveBundleLoadDuration(time.Since(loadStart).Seconds())
	}
	if err != nil {
		w.logger.Error(ctx, err, "content watcher failed to load bundle",
			"hash", truncHash(hash),
		)
		if w.metrics != nil {
			w.metrics.IncWatcherError("load")
		}
		return pollLoadError
	}

	if err := ValidateSnapshot(snap, w.validation); err != nil {
		w.logger.Error(ctx, err, "new bundle rejected, keeping current content",
			"rejected_hash", truncHash(hash),
			"current_hash", truncHash(w.currentHash),
		)
		if w.metrics != nil {
			w.metrics.IncWatcherError("validation")
		}
		return pollValidationError
	}

	oldHash := w.currentHash
	w.manager.Set(*snap)
	w.swapCount++
	w.currentHash = hash

	version := w.manager.ContentVersion()
	w.logger.Info(ctx, "content bundle swapped",
		"old_hash", truncHash(oldHash),
		"new_hash", truncHash(hash),
		"version", version,
		"total_swaps", w.swapCount,
	)

	if w.metrics != nil {
		w.metrics.IncWatcherSwaps()
	}

	if w.onSwap != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error(ctx, fmt.Errorf("OnSwap panic: %v", r),
						"content watcher OnSwap panicked, continuing",
						"hash", truncHash(hash),
					)
				}
			}()
			w.onSwap(hash, version)
		}()
	}

	return pollSwapped
}

// backoffDuration doubles per consecutive error, capped at maxBackoff. The
// exponent is clamped before the multiply: past ~2^30 the float product
// overflows time.Duration and goes negative, which would slip past the cap
// and panic ticker.Reset after a long outage.
func (w *Watcher) backoffDuration() time.Duration {
	n := w.consecutiveErrs
	if n > 10 {
		n = 10
	}
	d := time.Duration(float64(w.interval) * math.Pow(2, float64(n)))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func truncHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
