package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

func newTestReconciler(t *testing.T, users *userRepoStub, apps *appRepoStub, usage *usageRepoStub, now time.Time) *UsageReconciler {
	t.Helper()

	integrity := NewIntegrityChecker(users, apps, nil, nil)
	reconciler, err := NewUsageReconciler(usage, users, integrity, fixedClock(now), nil)
	if err != nil {
		t.Fatalf("NewUsageReconciler failed: %v", err)
	}
	return reconciler
}

func TestUsageReconciler_RecordUsage(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	principal := Principal{UserID: "user-1"}

	t.Run("accumulates duration and session counts", func(t *testing.T) {
		t.Parallel()

		users := newUserRepoStub(persistence.User{ID: "user-1"})
		usage := newUsageRepoStub()
		reconciler := newTestReconciler(t, users, newAppRepoStub("app-1"), usage, now)

		first, err := reconciler.RecordUsage(context.Background(), principal, RecordUsageParams{
			AppID: "app-1", Date: "2026-03-10", DurationMinutes: 10, SessionsCount: 1,
		})
		if err != nil {
			t.Fatalf("first RecordUsage failed: %v", err)
		}
		if first.DurationMinutes != 10 || first.SessionsCount != 1 {
			t.Fatalf("unexpected first merge: %+v", first)
		}

		second, err := reconciler.RecordUsage(context.Background(), principal, RecordUsageParams{
			AppID: "app-1", Date: "2026-03-10", DurationMinutes: 5, SessionsCount: 2,
		})
		if err != nil {
			t.Fatalf("second RecordUsage failed: %v", err)
		}
		if second.DurationMinutes != 15 || second.SessionsCount != 3 {
			t.Fatalf("expected additive merge to 15/3, got %d/%d", second.DurationMinutes, second.SessionsCount)
		}
	})

	t.Run("rejects reports for unknown apps", func(t *testing.T) {
		t.Parallel()

		users := newUserRepoStub(persistence.User{ID: "user-1"})
		reconciler := newTestReconciler(t, users, newAppRepoStub(), newUsageRepoStub(), now)

		_, err := reconciler.RecordUsage(context.Background(), principal, RecordUsageParams{
			AppID: "ghost", Date: "2026-03-10", DurationMinutes: 10,
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects malformed dates and negative values", func(t *testing.T) {
		t.Parallel()

		users := newUserRepoStub(persistence.User{ID: "user-1"})
		reconciler := newTestReconciler(t, users, newAppRepoStub("app-1"), newUsageRepoStub(), now)

		_, err := reconciler.RecordUsage(context.Background(), principal, RecordUsageParams{
			AppID: "app-1", Date: "10/03/2026", DurationMinutes: -1,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["date"]; !ok {
			t.Fatalf("expected date field error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["duration_minutes"]; !ok {
			t.Fatalf("expected duration field error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("defaults the date to today", func(t *testing.T) {
		t.Parallel()

		users := newUserRepoStub(persistence.User{ID: "user-1"})
		usage := newUsageRepoStub()
		reconciler := newTestReconciler(t, users, newAppRepoStub("app-1"), usage, now)

		record, err := reconciler.RecordUsage(context.Background(), principal, RecordUsageParams{
			AppID: "app-1", DurationMinutes: 3,
		})
		if err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
		if record.Date != "2026-03-10" {
			t.Fatalf("expected today's date, got %s", record.Date)
		}
	})
}

func TestUsageReconciler_AdvanceStreak(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	lastDate := func(date string) *string { return &date }

	t.Run("first activity starts the streak at one", func(t *testing.T) {
		t.Parallel()

		users := newUserRepoStub(persistence.User{ID: "user-1"})
		reconciler := newTestReconciler(t, users, newAppRepoStub(), newUsageRepoStub(), now)

		if err := reconciler.AdvanceStreak(context.Background(), "user-1", "2026-03-10"); err != nil {
			t.Fatalf("AdvanceStreak failed: %v", err)
		}
		user := users.users["user-1"]
		if user.CurrentStreak != 1 || user.LongestStreak != 1 {
			t.Fatalf("expected streak 1/1, got %d/%d", user.CurrentStreak, user.LongestStreak)
		}
	})

	t.Run("same-day activity is a no-op", func(t *testing.T) {
		t.Parallel()

		users := newUserRepoStub(persistence.User{
			ID: "user-1", CurrentStreak: 4, LongestStreak: 6, LastActivityDate: lastDate("2026-03-10"),
		})
		reconciler := newTestReconciler(t, users, newAppRepoStub(), newUsageRepoStub(), now)

		if err := reconciler.AdvanceStreak(context.Background(), "user-1", "2026-03-10"); err != nil {
			t.Fatalf("AdvanceStreak failed: %v", err)
		}
		if len(users.streakCalls) != 0 {
			t.Fatalf("expected no streak write, got %v", users.streakCalls)
		}
	})

	t.Run("consecutive-day activity extends the streak", func(t *testing.T) {
		t.Parallel()

		users := newUserRepoStub(persistence.User{
			ID: "user-1", CurrentStreak: 4, LongestStreak: 6, LastActivityDate: lastDate("2026-03-09"),
		})
		reconciler := newTestReconciler(t, users, newAppRepoStub(), newUsageRepoStub(), now)

		if err := reconciler.AdvanceStreak(context.Background(), "user-1", "2026-03-10"); err != nil {
			t.Fatalf("AdvanceStreak failed: %v", err)
		}
		user := users.users["user-1"]
		if user.CurrentStreak != 5 || user.LongestStreak != 6 {
			t.Fatalf("expected streak 5/6, got %d/%d", user.CurrentStreak, user.LongestStreak)
		}
	})

	t.Run("a gap resets the streak to one", func(t *testing.T) {
		t.Parallel()

		users := newUserRepoStub(persistence.User{
			ID: "user-1", CurrentStreak: 4, LongestStreak: 6, LastActivityDate: lastDate("2026-03-05"),
		})
		reconciler := newTestReconciler(t, users, newAppRepoStub(), newUsageRepoStub(), now)

		if err := reconciler.AdvanceStreak(context.Background(), "user-1", "2026-03-10"); err != nil {
			t.Fatalf("AdvanceStreak failed: %v", err)
		}
		user := users.users["user-1"]
		if user.CurrentStreak != 1 || user.LongestStreak != 6 {
			t.Fatalf("expected streak 1/6, got %d/%d", user.CurrentStreak, user.LongestStreak)
		}
	})

	t.Run("longest streak grows with the current one", func(t *testing.T) {
		t.Parallel()

		users := newUserRepoStub(persistence.User{
			ID: "user-1", CurrentStreak: 6, LongestStreak: 6, LastActivityDate: lastDate("2026-03-09"),
		})
		reconciler := newTestReconciler(t, users, newAppRepoStub(), newUsageRepoStub(), now)

		if err := reconciler.AdvanceStreak(context.Background(), "user-1", "2026-03-10"); err != nil {
			t.Fatalf("AdvanceStreak failed: %v", err)
		}
		user := users.users["user-1"]
		if user.CurrentStreak != 7 || user.LongestStreak != 7 {
			t.Fatalf("expected streak 7/7, got %d/%d", user.CurrentStreak, user.LongestStreak)
		}
	})
}

func TestUsageReconciler_ListUsage(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	principal := Principal{UserID: "user-1"}

	users := newUserRepoStub(persistence.User{ID: "user-1"})
	usage := newUsageRepoStub()
	reconciler := newTestReconciler(t, users, newAppRepoStub("app-1", "app-2"), usage, now)

	for _, params := range []RecordUsageParams{
		{AppID: "app-1", Date: "2026-03-09", DurationMinutes: 5},
		{AppID: "app-2", Date: "2026-03-10", DurationMinutes: 7},
	} {
		if _, err := reconciler.RecordUsage(context.Background(), principal, params); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
	}

	records, err := reconciler.ListUsage(context.Background(), principal, ListUsageParams{AppID: "app-2"})
	if err != nil {
		t.Fatalf("ListUsage failed: %v", err)
	}
	if len(records) != 1 || records[0].AppID != "app-2" {
		t.Fatalf("expected one app-2 record, got %+v", records)
	}

	if _, err := reconciler.ListUsage(context.Background(), principal, ListUsageParams{Date: "bad"}); err == nil {
		t.Fatal("expected malformed date filter to be rejected")
	}
}
