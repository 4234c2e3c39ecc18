package memory

import (
	"context"
	"testing"
	"time"

	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
	"github.com/louisbranch/rebazzar/internal/storage/storetest"
)

func TestStoreContracts(t *testing.T) {
	storetest.Run(t, func(*testing.T) storetest.Store { return New() })
}

func TestPruneSessions(t *testing.T) {
	t.Parallel()

	store := New()
	now := time.Date(2026, 2, 21, 20, 0, 0, 0, time.UTC)
	ctx := context.Background()
	_ = store.PutSession(ctx, authdomain.Session{ID: "old", UserID: "u", ExpiresAt: now.Add(-time.Minute)})
	_ = store.PutSession(ctx, authdomain.Session{ID: "live", UserID: "u", ExpiresAt: now.Add(time.Hour)})

	pruned, err := store.PruneSessions(ctx, now)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}
	if _, err := store.GetSession(ctx, "live"); err != nil {
		t.Fatalf("live session removed: %v", err)
	}
}

func TestListingsAreCopied(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	images := []string{"https://img/1"}
	if err := store.PutListing(ctx, listingdomain.Listing{ID: "fixture", Images: images}); err != nil {
		t.Fatalf("put: %v", err)
	}
	images[0] = "changed"
	got, err := store.GetListing(ctx, "fixture")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Images[0] != "https://img/1" {
		t.Fatal("store shares image slice with caller")
	}
}
