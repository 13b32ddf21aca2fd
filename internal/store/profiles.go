package store

import (
	"context"
	"strings"
	"time"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

// NormalizeUsername lowercases and trims; usernames are case-insensitive at
// the API surface and stored normalized.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// UsernameTaken reports whether a profile already owns the username.
func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return false, xerrors.New("username is required")
	}

	var taken bool
	err := s.timeQuery("username_taken", func() error {
		var n int
		row := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM profiles WHERE username = ?`, username)
		if err := row.Scan(&n); err != nil {
			return xerrors.Wrap(err, "query username")
		}
		taken = n > 0
		return nil
	})
	return taken, err
}

// CreateProfile inserts a profile row. The unique index makes duplicate
// usernames fail at the database, not just the availability check.
func (s *Store) CreateProfile(ctx context.Context, username, displayName string) error {
	username = NormalizeUsername(username)
	if username == "" {
		return xerrors.New("username is required")
	}

	return s.timeQuery("create_profile", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO profiles (username, display_name, created_at) VALUES (?, ?, ?)`,
			username, displayName, time.Now().Unix())
		return xerrors.Wrap(err, "insert profile")
	})
}
