package store

import (
	"context"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

// Statements are individually idempotent so a crashed migration can simply
// be re-run.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT,
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_username ON profiles(username);`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		user_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		plan TEXT NOT NULL,
		current_period_end INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT,
		thumbnail_url TEXT,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		published INTEGER NOT NULL DEFAULT 0,
		published_at INTEGER
	);`,
	`CREATE INDEX IF NOT EXISTS idx_videos_published ON videos(published, published_at);`,
}

// Migrate ensures the schema exists.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return xerrors.New("store is not initialized")
	}

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return xerrors.Wrap(err, "store migration failed")
		}
	}
	return nil
}
