package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	"github.com/louisbranch/rebazzar/internal/storage/storetest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "rebazzar.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestStoreConformance(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) storetest.Store {
		return openTempStore(t)
	})
}

func TestOpenAppliesConnectionPragmas(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	tests := []struct {
		pragma string
		want   string
	}{
		{pragma: "journal_mode", want: "wal"},
		{pragma: "busy_timeout", want: "5000"},
		{pragma: "synchronous", want: "1"},
		{pragma: "foreign_keys", want: "1"},
	}
	for _, tc := range tests {
		var got string
		if err := store.sqlDB.QueryRowContext(ctx, "PRAGMA "+tc.pragma).Scan(&got); err != nil {
			t.Fatalf("read %s: %v", tc.pragma, err)
		}
		if got != tc.want {
			t.Fatalf("%s = %q, want %q", tc.pragma, got, tc.want)
		}
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestReopenKeepsDataAndSkipsAppliedMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "rebazzar.db")
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	user := authdomain.User{
		ID:        "user-1",
		Email:     "sarah@example.com",
		Name:      "Sarah Johnson",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.PutUser(ctx, user); err != nil {
		t.Fatalf("put user: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.GetUserByEmail(ctx, "SARAH@example.com")
	if err != nil {
		t.Fatalf("get user after reopen: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("user id = %q, want %q", got.ID, user.ID)
	}
	if err := reopened.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestPruneSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for _, session := range []authdomain.Session{
		{ID: "expired", UserID: "user-1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		{ID: "boundary", UserID: "user-1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now},
		{ID: "live", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	} {
		if err := store.PutSession(ctx, session); err != nil {
			t.Fatalf("put session %s: %v", session.ID, err)
		}
	}
	removed, err := store.PruneSessions(ctx, now)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, err := store.GetSession(ctx, "live"); err != nil {
		t.Fatalf("live session: %v", err)
	}
}
