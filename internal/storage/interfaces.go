// Package storage defines the persistence contracts for warehouse rows and
// the live snapshot cache.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vectorquant/internal/domain"
)

// PriceStore provides access to crypto_prices storage.
type PriceStore interface {
	// InsertBulk appends price rows. Rows are not deduplicated.
	InsertBulk(ctx context.Context, prices []*domain.CryptoPrice) error

	// GetRecent retrieves rows with timestamp >= since, newest first, at most limit rows.
	GetRecent(ctx context.Context, since time.Time, limit int) ([]*domain.CryptoPrice, error)

	// GetBySymbol retrieves rows for a symbol within [start, end] (inclusive), oldest first.
	GetBySymbol(ctx context.Context, symbol string, start, end time.Time) ([]*domain.CryptoPrice, error)
}

// MetricStore provides access to trading_metrics storage.
type MetricStore interface {
	// InsertBulk appends metric rows.
	InsertBulk(ctx context.Context, metrics []*domain.TradingMetric) error

	// GetByName retrieves rows for a metric within [start, end] (inclusive), oldest first.
	GetByName(ctx context.Context, name string, start, end time.Time) ([]*domain.TradingMetric, error)

	// GetNames retrieves the distinct metric names with rows within [start, end], ascending.
	GetNames(ctx context.Context, start, end time.Time) ([]string, error)

	// GetRecent retrieves rows with timestamp >= since, newest first, at most limit rows.
	GetRecent(ctx context.Context, since time.Time, limit int) ([]*domain.TradingMetric, error)
}

// AlertStore provides access to alerts storage.
type AlertStore interface {
	// Insert adds an alert. An empty AlertID is assigned before writing.
	// Returns ErrDuplicateKey if alert_id exists.
	Insert(ctx context.Context, a *domain.AlertRecord) error

	// InsertBulk adds multiple alerts atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, alerts []*domain.AlertRecord) error

	// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, alertID string) (*domain.AlertRecord, error)

	// GetRecent retrieves at most limit alerts, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.AlertRecord, error)

	// Resolve marks an alert as resolved. Returns ErrNotFound if not exists.
	// Resolving an already resolved alert is a no-op.
	Resolve(ctx context.Context, alertID string) error
}

// SnapshotCache keeps the latest live snapshot outside the process.
type SnapshotCache interface {
	// Save overwrites the cached snapshot.
	Save(ctx context.Context, snap domain.Snapshot) error

	// Load returns the cached snapshot. Returns ErrNotFound if nothing is cached.
	Load(ctx context.Context) (domain.Snapshot, error)

	// Touch restarts the expiry of the cached snapshot without rewriting it.
	// Returns ErrNotFound if nothing is cached.
	Touch(ctx context.Context) error
}

// AssignAlertID gives a an ID if it has none.
func AssignAlertID(a *domain.AlertRecord) {
	if a.AlertID == "" {
		a.AlertID = uuid.NewString()
	}
}

// ClampLimit bounds a caller supplied row limit to [1, ceiling].
func ClampLimit(limit, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}

// MaxRows is the largest page any reader returns.
const MaxRows = 1000
