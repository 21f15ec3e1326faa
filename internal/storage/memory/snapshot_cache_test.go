package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage"
)

func TestSnapshotCache(t *testing.T) {
	cache := NewSnapshotCache()
	ctx := context.Background()

	if _, err := cache.Load(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := cache.Touch(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Touch, got %v", err)
	}

	snap := domain.Snapshot{State: domain.Initial(), Taken: time.Unix(1700000000, 0)}
	snap.State.UptimeHours = 3.5
	if err := cache.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != snap {
		t.Errorf("snapshot mismatch: got %+v, want %+v", got, snap)
	}
	if err := cache.Touch(ctx); err != nil {
		t.Errorf("Touch failed: %v", err)
	}
}
