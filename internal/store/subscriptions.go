package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

// Subscription is one user's billing state as last synced from the payments
// provider.
type Subscription struct {
	UserID           string
	Status           string
	Plan             string
	CurrentPeriodEnd time.Time
}

// GetSubscription returns ErrNotFound for users with no subscription row,
// which the API maps to a "none" status rather than an error.
func (s *Store) GetSubscription(ctx context.Context, userID string) (Subscription, error) {
	if userID == "" {
		return Subscription{}, xerrors.New("user id is required")
	}

	var sub Subscription
	err := s.timeQuery("get_subscription", func() error {
		var periodEnd int64
		row := s.db.QueryRowContext(ctx,
			`SELECT user_id, status, plan, current_period_end
			 FROM subscriptions WHERE user_id = ?`, userID)
		if err := row.Scan(&sub.UserID, &sub.Status, &sub.Plan, &periodEnd); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return xerrors.Wrap(err, "query subscription")
		}
		sub.CurrentPeriodEnd = time.Unix(periodEnd, 0).UTC()
		return nil
	})
	return sub, err
}

// UpsertSubscription records the provider's latest state for a user.
func (s *Store) UpsertSubscription(ctx context.Context, sub Subscription) error {
	if sub.UserID == "" {
		return xerrors.New("user id is required")
	}

	return s.timeQuery("upsert_subscription", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO subscriptions (user_id, status, plan, current_period_end, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET
				status = excluded.status,
				plan = excluded.plan,
				current_period_end = excluded.current_period_end,
				updated_at = excluded.updated_at`,
			sub.UserID, sub.Status, sub.Plan, sub.CurrentPeriodEnd.Unix(), time.Now().Unix())
		return xerrors.Wrap(err, "upsert subscription")
	})
}
