package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "focusguard.db")
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db
}

// seedUserAndApp satisfies the foreign keys most tables carry.
func seedUserAndApp(t *testing.T, db *DB, userID, appID string) {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := NewUserRepository(db).CreateUser(ctx, persistence.User{
		ID:           userID,
		Email:        userID + "@example.com",
		DisplayName:  userID,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("seed user failed: %v", err)
	}

	if err := NewAppRepository(db).CreateApp(ctx, persistence.TrackedApp{
		ID:       appID,
		Name:     appID,
		Category: "social",
	}); err != nil {
		t.Fatalf("seed app failed: %v", err)
	}
}

func TestUsageRepository_MergeUsage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUserAndApp(t, db, "user-1", "app-1")
	repo := NewUsageRepository(db)

	base := persistence.AppUsageRecord{
		UserID:          "user-1",
		AppID:           "app-1",
		Date:            "2026-03-10",
		DurationMinutes: 10,
		SessionsCount:   1,
	}

	first, err := repo.MergeUsage(ctx, base)
	if err != nil {
		t.Fatalf("first MergeUsage failed: %v", err)
	}
	if first.DurationMinutes != 10 || first.SessionsCount != 1 {
		t.Errorf("expected 10/1 after insert, got %d/%d", first.DurationMinutes, first.SessionsCount)
	}

	// The conflict clause adds, it never overwrites.
	base.DurationMinutes = 5
	base.SessionsCount = 2
	merged, err := repo.MergeUsage(ctx, base)
	if err != nil {
		t.Fatalf("second MergeUsage failed: %v", err)
	}
	if merged.DurationMinutes != 15 || merged.SessionsCount != 3 {
		t.Errorf("expected 15/3 after merge, got %d/%d", merged.DurationMinutes, merged.SessionsCount)
	}

	// A different date is a different aggregate key.
	base.Date = "2026-03-11"
	other, err := repo.MergeUsage(ctx, base)
	if err != nil {
		t.Fatalf("MergeUsage for second date failed: %v", err)
	}
	if other.DurationMinutes != 5 || other.SessionsCount != 2 {
		t.Errorf("expected fresh 5/2 row, got %d/%d", other.DurationMinutes, other.SessionsCount)
	}

	records, err := repo.ListUsage(ctx, persistence.UsageFilter{UserID: "user-1", Date: "2026-03-10"})
	if err != nil {
		t.Fatalf("ListUsage failed: %v", err)
	}
	if len(records) != 1 || records[0].DurationMinutes != 15 {
		t.Errorf("expected one 15-minute row for the filtered date, got %+v", records)
	}
}

func TestUsageRepository_MergeUsage_MissingReferences(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUsageRepository(db)

	_, err := repo.MergeUsage(ctx, persistence.AppUsageRecord{
		UserID:          "ghost",
		AppID:           "app-1",
		Date:            "2026-03-10",
		DurationMinutes: 5,
	})
	if !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
}

func TestFocusSessionRepository_SingleActiveSession(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUserAndApp(t, db, "user-1", "app-1")
	repo := NewFocusSessionRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	session := persistence.FocusSession{
		ID:                "session-1",
		UserID:            "user-1",
		StartTime:         now,
		ScheduledDuration: 25,
		BreaksAllowed:     3,
		Status:            persistence.SessionStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// The partial unique index rejects a second active row for the user.
	second := session
	second.ID = "session-2"
	if err := repo.CreateSession(ctx, second); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second active session, got %v", err)
	}

	if err := repo.FinalizeSession(ctx, "session-1", persistence.SessionStatusCompleted, now.Add(10*time.Minute)); err != nil {
		t.Fatalf("FinalizeSession failed: %v", err)
	}

	// A finalized row frees the index slot for a new session.
	if err := repo.CreateSession(ctx, second); err != nil {
		t.Fatalf("CreateSession after finalize failed: %v", err)
	}

	active, err := repo.GetActiveSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetActiveSession failed: %v", err)
	}
	if active.ID != "session-2" {
		t.Errorf("expected session-2 to be active, got %s", active.ID)
	}
}

func TestFocusSessionRepository_FinalizeTwice(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUserAndApp(t, db, "user-1", "app-1")
	repo := NewFocusSessionRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	if err := repo.CreateSession(ctx, persistence.FocusSession{
		ID: "session-1", UserID: "user-1", StartTime: now,
		ScheduledDuration: 25, BreaksAllowed: 3,
		Status: persistence.SessionStatusActive, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := repo.FinalizeSession(ctx, "session-1", persistence.SessionStatusOverridden, now); err != nil {
		t.Fatalf("FinalizeSession failed: %v", err)
	}
	if err := repo.FinalizeSession(ctx, "session-1", persistence.SessionStatusCompleted, now); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an already-terminal session, got %v", err)
	}
	if _, err := repo.GetActiveSession(ctx, "user-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected no active session, got %v", err)
	}
}

func TestFocusSessionRepository_SessionApps(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUserAndApp(t, db, "user-1", "app-1")
	if err := NewAppRepository(db).CreateApp(ctx, persistence.TrackedApp{ID: "app-2", Name: "app-2", Category: "games"}); err != nil {
		t.Fatalf("seed second app failed: %v", err)
	}
	repo := NewFocusSessionRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	if err := repo.CreateSession(ctx, persistence.FocusSession{
		ID: "session-1", UserID: "user-1", StartTime: now,
		ScheduledDuration: 25, BreaksAllowed: 3,
		Status: persistence.SessionStatusActive, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := repo.AddSessionApps(ctx, "session-1", []string{"app-1"}); err != nil {
		t.Fatalf("AddSessionApps failed: %v", err)
	}
	// Re-adding app-1 is a no-op; only app-2 joins.
	if err := repo.AddSessionApps(ctx, "session-1", []string{"app-1", "app-2"}); err != nil {
		t.Fatalf("idempotent AddSessionApps failed: %v", err)
	}

	if err := repo.SetMinutesSaved(ctx, "session-1", 12); err != nil {
		t.Fatalf("SetMinutesSaved failed: %v", err)
	}

	apps, err := repo.ListSessionApps(ctx, "session-1")
	if err != nil {
		t.Fatalf("ListSessionApps failed: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("expected two joined apps, got %d", len(apps))
	}
	for _, app := range apps {
		if app.MinutesSaved != 12 {
			t.Errorf("expected every locked app to carry 12 minutes, got %d for %s", app.MinutesSaved, app.AppID)
		}
	}

	// Deleting the session cascades the join rows.
	if err := repo.DeleteSession(ctx, "session-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	apps, err = repo.ListSessionApps(ctx, "session-1")
	if err != nil {
		t.Fatalf("ListSessionApps after delete failed: %v", err)
	}
	if len(apps) != 0 {
		t.Errorf("expected cascaded join rows to be gone, got %d", len(apps))
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	user := persistence.User{
		ID: "user-1", Email: "alice@example.com", DisplayName: "Alice",
		PasswordHash: "hash", CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	// Same email, different casing; the column collates NOCASE.
	user.ID = "user-2"
	user.Email = "ALICE@example.com"
	if err := repo.CreateUser(ctx, user); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for reused email, got %v", err)
	}
}

func TestFocusSessionRepository_StatusCheck(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUserAndApp(t, db, "user-1", "app-1")
	repo := NewFocusSessionRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	err := repo.CreateSession(ctx, persistence.FocusSession{
		ID: "session-1", UserID: "user-1", StartTime: now,
		ScheduledDuration: 25, BreaksAllowed: 3,
		Status: "paused", CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for unknown status, got %v", err)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil passes through", nil, nil},
		{"no rows becomes not found", sql.ErrNoRows, persistence.ErrNotFound},
		{"unique violation", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), persistence.ErrDuplicate},
		{"foreign key violation", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), persistence.ErrForeignKeyViolation},
		{"check violation", errors.New("constraint failed: CHECK constraint failed: status (275)"), persistence.ErrConstraintViolation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapError(tc.in); !errors.Is(got, tc.want) {
				t.Fatalf("mapError(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}

	opaque := errors.New("disk I/O error")
	if got := mapError(opaque); got != opaque {
		t.Fatalf("expected unrecognized errors to pass through, got %v", got)
	}
}
