package clickhouse

import (
	"context"
	"fmt"
	"time"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage"
)

// MetricStore implements storage.MetricStore using ClickHouse.
type MetricStore struct {
	conn *Conn
}

// NewMetricStore creates a new MetricStore.
func NewMetricStore(conn *Conn) *MetricStore {
	return &MetricStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MetricStore = (*MetricStore)(nil)

// InsertBulk appends metric rows in a single batch.
func (s *MetricStore) InsertBulk(ctx context.Context, metrics []*domain.TradingMetric) (err error) {
	if len(metrics) == 0 {
		return nil
	}
	defer track("insert_metrics")(&err)

	for _, m := range metrics {
		if m == nil || m.MetricName == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trading_metrics (metric_name, metric_value, timestamp)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range metrics {
		if err = batch.Append(m.MetricName, m.MetricValue, m.Timestamp.UTC()); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByName retrieves rows for a metric within [start, end] (inclusive), oldest first.
func (s *MetricStore) GetByName(ctx context.Context, name string, start, end time.Time) (out []*domain.TradingMetric, err error) {
	defer track("metrics_by_name")(&err)

	query := `
		SELECT metric_name, metric_value, timestamp
		FROM trading_metrics
		WHERE metric_name = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, name, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query metrics by name: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// GetNames retrieves the distinct metric names with rows within [start, end], ascending.
func (s *MetricStore) GetNames(ctx context.Context, start, end time.Time) (names []string, err error) {
	defer track("metric_names")(&err)

	query := `
		SELECT DISTINCT metric_name
		FROM trading_metrics
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY metric_name ASC
	`

	rows, err := s.conn.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query metric names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan metric name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric names: %w", err)
	}
	return names, nil
}

// GetRecent retrieves rows with timestamp >= since, newest first.
func (s *MetricStore) GetRecent(ctx context.Context, since time.Time, limit int) (out []*domain.TradingMetric, err error) {
	defer track("recent_metrics")(&err)

	query := `
		SELECT metric_name, metric_value, timestamp
		FROM trading_metrics
		WHERE timestamp >= ?
		ORDER BY timestamp DESC, metric_name ASC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, since.UTC(), uint64(storage.ClampLimit(limit, storage.MaxRows)))
	if err != nil {
		return nil, fmt.Errorf("query recent metrics: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// scanMetrics scans multiple rows.
func scanMetrics(rows chRows) ([]*domain.TradingMetric, error) {
	var metrics []*domain.TradingMetric

	for rows.Next() {
		var m domain.TradingMetric
		if err := rows.Scan(&m.MetricName, &m.MetricValue, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		metrics = append(metrics, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric rows: %w", err)
	}

	return metrics, nil
}
