// Package redis keeps the latest live snapshot in Redis so a restarted
// server resumes from where the previous process stopped.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"vectorquant/internal/domain"
	"vectorquant/internal/observability"
	"vectorquant/internal/storage"
)

// DefaultKey is the key the snapshot is stored under.
const DefaultKey = "vectorquant:snapshot"

// Options configures a SnapshotCache client.
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string        // defaults to DefaultKey
	TTL      time.Duration // zero keeps the snapshot forever
}

// SnapshotCache implements storage.SnapshotCache on a Redis string key.
type SnapshotCache struct {
	client goredis.Cmdable
	key    string
	ttl    time.Duration
}

// Compile-time interface check.
var _ storage.SnapshotCache = (*SnapshotCache)(nil)

// Connect opens a client for opts and verifies it with PING.
func Connect(ctx context.Context, opts Options) (*SnapshotCache, *goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return New(client, opts.Key, opts.TTL), client, nil
}

// New wraps an existing client.
func New(client goredis.Cmdable, key string, ttl time.Duration) *SnapshotCache {
	if key == "" {
		key = DefaultKey
	}
	return &SnapshotCache{client: client, key: key, ttl: ttl}
}

// cachedSnapshot is the stored form. Values keep full precision.
type cachedSnapshot struct {
	State domain.MetricsState `json:"state"`
	Taken time.Time           `json:"taken"`
}

func encode(snap domain.Snapshot) (string, error) {
	data, err := json.Marshal(cachedSnapshot{State: snap.State, Taken: snap.Taken.UTC()})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Save overwrites the cached snapshot.
func (c *SnapshotCache) Save(ctx context.Context, snap domain.Snapshot) (err error) {
	defer func() { observability.RecordCacheOp("save", err) }()

	val, err := encode(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load returns the cached snapshot. Returns storage.ErrNotFound on a miss.
func (c *SnapshotCache) Load(ctx context.Context) (snap domain.Snapshot, err error) {
	defer func() {
		if !errors.Is(err, storage.ErrNotFound) {
			observability.RecordCacheOp("load", err)
		}
	}()

	val, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.Snapshot{}, storage.ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("redis get: %w", err)
	}

	var cached cachedSnapshot
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if !cached.State.Mode.IsValid() {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", domain.ErrInvalidMode)
	}
	return domain.Snapshot{State: cached.State, Taken: cached.Taken}, nil
}

// Touch resets the TTL of the cached snapshot, or checks that it still exists
// when there is no TTL. Returns storage.ErrNotFound once the key is gone.
func (c *SnapshotCache) Touch(ctx context.Context) (err error) {
	defer func() {
		if !errors.Is(err, storage.ErrNotFound) {
			observability.RecordCacheOp("touch", err)
		}
	}()

	var found bool
	if c.ttl > 0 {
		found, err = c.client.Expire(ctx, c.key, c.ttl).Result()
	} else {
		var n int64
		n, err = c.client.Exists(ctx, c.key).Result()
		found = n > 0
	}
	if err != nil {
		return fmt.Errorf("redis touch: %w", err)
	}
	if !found {
		return storage.ErrNotFound
	}
	return nil
}
