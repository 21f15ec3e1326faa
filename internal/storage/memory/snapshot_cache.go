package memory

import (
	"context"
	"sync"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage"
)

// SnapshotCache is an in-memory implementation of storage.SnapshotCache.
// It only survives as long as the process and is used when no Redis is configured.
type SnapshotCache struct {
	mu   sync.RWMutex
	snap *domain.Snapshot
}

// NewSnapshotCache creates an empty snapshot cache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{}
}

// Save overwrites the cached snapshot.
func (c *SnapshotCache) Save(_ context.Context, snap domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = &snap
	return nil
}

// Load returns the cached snapshot. Returns ErrNotFound if nothing is cached.
func (c *SnapshotCache) Load(_ context.Context) (domain.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return domain.Snapshot{}, storage.ErrNotFound
	}
	return *c.snap, nil
}

// Touch reports whether a snapshot is cached. Memory entries never expire.
func (c *SnapshotCache) Touch(_ context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return storage.ErrNotFound
	}
	return nil
}

var _ storage.SnapshotCache = (*SnapshotCache)(nil)
