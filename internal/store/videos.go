package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

// Video is one published listing.
type Video struct {
	ID              int64
	Slug            string
	Title           string
	Description     string
	ThumbnailURL    string
	DurationSeconds int
	PublishedAt     time.Time
}

// ListVideos returns one page of published videos, newest first, plus the
// total published count for pagination. page is 1-based.
func (s *Store) ListVideos(ctx context.Context, page, perPage int) ([]Video, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	var out []Video
	var total int
	err := s.timeQuery("list_videos", func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM videos WHERE published = 1`)
		if err := row.Scan(&total); err != nil {
			return xerrors.Wrap(err, "count videos")
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT id, slug, title, COALESCE(description, ''),
				COALESCE(thumbnail_url, ''), duration_seconds, published_at
			 FROM videos
			 WHERE published = 1
			 ORDER BY published_at DESC, id DESC
			 LIMIT ? OFFSET ?`,
			perPage, (page-1)*perPage)
		if err != nil {
			return xerrors.Wrap(err, "query videos")
		}
		defer rows.Close()

		for rows.Next() {
			var v Video
			var publishedAt sql.NullInt64
			if err := rows.Scan(&v.ID, &v.Slug, &v.Title, &v.Description,
				&v.ThumbnailURL, &v.DurationSeconds, &publishedAt); err != nil {
				return xerrors.Wrap(err, "scan video")
			}
			if publishedAt.Valid {
				v.PublishedAt = time.Unix(publishedAt.Int64, 0).UTC()
			}
			out = append(out, v)
		}
		return xerrors.Wrap(rows.Err(), "iterate videos")
	})
	return out, total, err
}

// CountVideos returns the number of published listings.
func (s *Store) CountVideos(ctx context.Context) (int, error) {
	var total int
	err := s.timeQuery("count_videos", func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM videos WHERE published = 1`)
		return xerrors.Wrap(row.Scan(&total), "count videos")
	})
	return total, err
}

// InsertVideo adds a listing; published ones appear in ListVideos
// immediately.
func (s *Store) InsertVideo(ctx context.Context, v Video, published bool) error {
	if v.Slug == "" || v.Title == "" {
		return xerrors.New("video slug and title are required")
	}

	return s.timeQuery("insert_video", func() error {
		var publishedAt any
		pub := 0
		if published {
			pub = 1
			at := v.PublishedAt
			if at.IsZero() {
				at = time.Now()
			}
			publishedAt = at.Unix()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO videos (slug, title, description, thumbnail_url,
				duration_seconds, published, published_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			v.Slug, v.Title, v.Description, v.ThumbnailURL,
			v.DurationSeconds, pub, publishedAt)
		return xerrors.Wrap(err, "insert video")
	})
}
