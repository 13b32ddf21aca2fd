//go:build cgo

// The libsql driver needs cgo, so the database-backed tests carry the build
// tag and get skipped on CGO_ENABLED=0 builds.

package store

import (
	"errors"
	"testing"
	"time"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.Context(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(t.Context()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestOpen_InvalidDSN(t *testing.T) {
	if _, err := Open(t.Context(), ""); err == nil {
		t.Fatal("empty dsn must fail")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openMemoryStore(t)
	if err := s.Migrate(t.Context()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestPing(t *testing.T) {
	s := openMemoryStore(t)
	if err := s.Ping(t.Context()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestUsernameTaken(t *testing.T) {
	s := openMemoryStore(t)

	taken, err := s.UsernameTaken(t.Context(), "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if taken {
		t.Fatal("fresh store should have no usernames")
	}

	if err := s.CreateProfile(t.Context(), "Alice", "Alice Example"); err != nil {
		t.Fatalf("create: %v", err)
	}

	// stored normalized, matched case-insensitively
	for _, u := range []string{"alice", "ALICE", " alice "} {
		taken, err = s.UsernameTaken(t.Context(), u)
		if err != nil {
			t.Fatalf("check %q: %v", u, err)
		}
		if !taken {
			t.Errorf("UsernameTaken(%q) = false after create", u)
		}
	}

	if err := s.CreateProfile(t.Context(), "alice", "dup"); err == nil {
		t.Fatal("duplicate username must fail on the unique index")
	}
}

func TestUsernameTaken_EmptyRejected(t *testing.T) {
	s := openMemoryStore(t)
	if _, err := s.UsernameTaken(t.Context(), "  "); err == nil {
		t.Fatal("blank username must error")
	}
}

func TestSubscriptionRoundTrip(t *testing.T) {
	s := openMemoryStore(t)

	_, err := s.GetSubscription(t.Context(), "user-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing subscription: err = %v, want ErrNotFound", err)
	}

	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := Subscription{UserID: "user-1", Status: "active", Plan: "pro", CurrentPeriodEnd: end}
	if err := s.UpsertSubscription(t.Context(), sub); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetSubscription(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "active" || got.Plan != "pro" || !got.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("got %+v", got)
	}

	// upsert replaces
	sub.Status = "canceled"
	if err := s.UpsertSubscription(t.Context(), sub); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _ = s.GetSubscription(t.Context(), "user-1")
	if got.Status != "canceled" {
		t.Fatalf("status after upsert = %q", got.Status)
	}
}

func TestListVideos_PaginationAndOrder(t *testing.T) {
	s := openMemoryStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		v := Video{
			Slug:        []string{"a", "b", "c", "d", "e"}[i],
			Title:       "Video " + string(rune('A'+i)),
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.InsertVideo(t.Context(), v, true); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	// unpublished rows never appear
	if err := s.InsertVideo(t.Context(), Video{Slug: "draft", Title: "Draft"}, false); err != nil {
		t.Fatalf("insert draft: %v", err)
	}

	page1, total, err := s.ListVideos(t.Context(), 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5 (draft excluded)", total)
	}
	if len(page1) != 2 || page1[0].Slug != "e" || page1[1].Slug != "d" {
		t.Fatalf("page1 = %+v, want newest first", page1)
	}

	page3, _, err := s.ListVideos(t.Context(), 3, 2)
	if err != nil {
		t.Fatalf("page3: %v", err)
	}
	if len(page3) != 1 || page3[0].Slug != "a" {
		t.Fatalf("page3 = %+v", page3)
	}

	empty, _, err := s.ListVideos(t.Context(), 99, 2)
	if err != nil {
		t.Fatalf("far page: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("far page returned %d rows", len(empty))
	}

	count, err := s.CountVideos(t.Context())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != total {
		t.Fatalf("CountVideos = %d, ListVideos total = %d", count, total)
	}
}

func TestObserver_SeesOutcomes(t *testing.T) {
	type obs struct{ op, outcome string }
	var seen []obs

	s, err := Open(t.Context(), ":memory:", WithObserver(func(op, outcome string, d time.Duration) {
		seen = append(seen, obs{op, outcome})
	}))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(t.Context()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s.GetSubscription(t.Context(), "ghost")

	if len(seen) != 1 || seen[0].op != "get_subscription" || seen[0].outcome != "not_found" {
		t.Fatalf("seen = %+v", seen)
	}
}
