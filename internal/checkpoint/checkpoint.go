// Package checkpoint persists the live state to the snapshot cache so a
// restarted process resumes where the last one stopped.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage"
)

// DefaultInterval between periodic saves.
const DefaultInterval = 5 * time.Second

const finalSaveTimeout = 5 * time.Second

// Source supplies the state to save.
type Source interface {
	Snapshot() domain.Snapshot
}

// Target receives a restored state.
type Target interface {
	Restore(s domain.MetricsState) error
}

// Checkpointer periodically copies the live state into a SnapshotCache.
// Unchanged states are not written again, only touched so the cached copy
// does not expire while the state is idle. Save and Run must not be called
// concurrently.
type Checkpointer struct {
	cache    storage.SnapshotCache
	source   Source
	interval time.Duration
	logger   *zap.Logger

	last  domain.MetricsState
	saved bool
}

// New creates a checkpointer. A non-positive interval uses DefaultInterval.
func New(cache storage.SnapshotCache, source Source, interval time.Duration, logger *zap.Logger) *Checkpointer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checkpointer{
		cache:    cache,
		source:   source,
		interval: interval,
		logger:   logger.Named("checkpoint"),
	}
}

// Restore loads the cached state into target. It reports false when the
// cache is empty.
func (c *Checkpointer) Restore(ctx context.Context, target Target) (bool, error) {
	snap, err := c.cache.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if err := target.Restore(snap.State); err != nil {
		return false, fmt.Errorf("restore snapshot: %w", err)
	}

	c.last = snap.State
	c.saved = true
	c.logger.Info("state restored",
		zap.Time("taken", snap.Taken),
		zap.Float64("uptime_hours", snap.State.UptimeHours),
	)
	return true, nil
}

// Save writes the current state if it changed since the last save, and
// otherwise refreshes the cached copy. A cached copy that has expired or been
// evicted is written again.
func (c *Checkpointer) Save(ctx context.Context) error {
	snap := c.source.Snapshot()
	if c.saved && snap.State == c.last {
		err := c.cache.Touch(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("refresh snapshot: %w", err)
		}
		c.logger.Warn("cached snapshot missing, saving again")
	}
	if err := c.cache.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	c.last = snap.State
	c.saved = true
	return nil
}

// Run saves every interval until ctx is cancelled, then makes one final save.
// Save failures are logged and do not stop the loop.
func (c *Checkpointer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
			defer cancel()
			if err := c.Save(finalCtx); err != nil {
				c.logger.Error("final checkpoint failed", zap.Error(err))
				return err
			}
			return nil
		case <-ticker.C:
			if err := c.Save(ctx); err != nil {
				c.logger.Warn("checkpoint failed", zap.Error(err))
			}
		}
	}
}
