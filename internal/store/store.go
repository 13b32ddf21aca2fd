// Package store is the libsql-backed persistence layer: profiles,
// subscriptions, and published video listings. The driver handles local
// files, :memory: databases, and libsql:// remotes through one DSN.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

const driverName = "libsql"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Observer receives per-query timing, wired to the store metrics.
type Observer func(op, outcome string, d time.Duration)

// Store wraps the database handle. All methods are safe for concurrent use;
// database/sql pools connections underneath.
type Store struct {
	db      *sql.DB
	observe Observer
}

type Option func(*Store)

// WithObserver installs a per-query timing callback.
func WithObserver(obs Observer) Option {
	return func(s *Store) { s.observe = obs }
}

// Open connects and pings. DSN forms: ":memory:", "file:path.db",
// "libsql://host" (remote), or a bare path which is treated as a file.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, xerrors.Wrap(err, "open libsql store")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(err, "ping libsql store")
	}

	s := &Store{db: db}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports connectivity; used as the store readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return xerrors.New("store is not initialized")
	}
	return s.db.PingContext(ctx)
}

func normalizeDSN(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", xerrors.New("store dsn is required")
	}

	switch {
	case dsn == ":memory:":
		return dsn, nil
	case strings.HasPrefix(dsn, "libsql:"):
		return dsn, nil
	case strings.HasPrefix(dsn, "file:"):
		if err := ensureDir(strings.TrimPrefix(dsn, "file:")); err != nil {
			return "", err
		}
		return dsn, nil
	default:
		if err := ensureDir(dsn); err != nil {
			return "", err
		}
		return "file:" + filepath.Clean(dsn), nil
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Wrapf(err, "create store directory %s", dir)
	}
	return nil
}

// timeQuery runs fn and reports its duration and outcome to the observer.
func (s *Store) timeQuery(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	if s.observe != nil {
		outcome := "ok"
		switch {
		case errors.Is(err, ErrNotFound):
			outcome = "not_found"
		case err != nil:
			outcome = "error"
		}
		s.observe(op, outcome, time.Since(start))
	}
	return err
}
