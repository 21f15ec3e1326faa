package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage"
)

// MetricStore is an in-memory implementation of storage.MetricStore.
// Rows are kept per metric name and pruned on insert according to its Retention.
type MetricStore struct {
	mu        sync.RWMutex
	retention Retention
	byName    map[string]*series[domain.TradingMetric]
	newest    time.Time
}

// NewMetricStore creates a new in-memory metric store.
func NewMetricStore(opts ...Option) *MetricStore {
	return &MetricStore{
		retention: newRetention(opts),
		byName:    make(map[string]*series[domain.TradingMetric]),
	}
}

func metricTime(m *domain.TradingMetric) time.Time { return m.Timestamp }

// InsertBulk appends metric rows.
func (s *MetricStore) InsertBulk(_ context.Context, metrics []*domain.TradingMetric) error {
	for _, m := range metrics {
		if m == nil || m.MetricName == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range metrics {
		row := *m
		ser, ok := s.byName[m.MetricName]
		if !ok {
			ser = newSeries(metricTime)
			s.byName[m.MetricName] = ser
		}
		ser.insert(&row)
		if row.Timestamp.After(s.newest) {
			s.newest = row.Timestamp
		}
	}

	s.prune()
	return nil
}

// prune applies the retention to every metric. Callers hold mu.
func (s *MetricStore) prune() {
	cutoff := s.retention.cutoff(s.newest)
	for name, ser := range s.byName {
		ser.trim(cutoff, s.retention.MaxRows)
		if len(ser.rows) == 0 {
			delete(s.byName, name)
		}
	}
}

// Len returns the number of rows held for name.
func (s *MetricStore) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ser, ok := s.byName[name]; ok {
		return len(ser.rows)
	}
	return 0
}

// GetByName retrieves rows for a metric within [start, end], oldest first.
func (s *MetricStore) GetByName(_ context.Context, name string, start, end time.Time) ([]*domain.TradingMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ser, ok := s.byName[name]
	if !ok {
		return nil, nil
	}

	var out []*domain.TradingMetric
	for _, m := range ser.between(start, end) {
		row := *m
		out = append(out, &row)
	}
	return out, nil
}

// GetNames returns the metric names with at least one row within
// [start, end], in ascending order.
func (s *MetricStore) GetNames(_ context.Context, start, end time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name, ser := range s.byName {
		if len(ser.between(start, end)) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// GetRecent retrieves rows with timestamp >= since, newest first.
func (s *MetricStore) GetRecent(_ context.Context, since time.Time, limit int) ([]*domain.TradingMetric, error) {
	limit = storage.ClampLimit(limit, storage.MaxRows)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TradingMetric
	for _, ser := range s.byName {
		for _, m := range ser.tail(since, limit) {
			row := *m
			out = append(out, &row)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].MetricName < out[j].MetricName
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ storage.MetricStore = (*MetricStore)(nil)
