package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
// Rows are kept per symbol and pruned on insert according to its Retention.
type PriceStore struct {
	mu        sync.RWMutex
	retention Retention
	bySymbol  map[string]*series[domain.CryptoPrice]
	newest    time.Time
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore(opts ...Option) *PriceStore {
	return &PriceStore{
		retention: newRetention(opts),
		bySymbol:  make(map[string]*series[domain.CryptoPrice]),
	}
}

func priceTime(p *domain.CryptoPrice) time.Time { return p.Timestamp }

// InsertBulk appends price rows.
func (s *PriceStore) InsertBulk(_ context.Context, prices []*domain.CryptoPrice) error {
	for _, p := range prices {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range prices {
		row := *p
		ser, ok := s.bySymbol[p.Symbol]
		if !ok {
			ser = newSeries(priceTime)
			s.bySymbol[p.Symbol] = ser
		}
		ser.insert(&row)
		if row.Timestamp.After(s.newest) {
			s.newest = row.Timestamp
		}
	}
	s.prune()
	return nil
}

// prune applies the retention to every symbol. Callers hold mu.
func (s *PriceStore) prune() {
	cutoff := s.retention.cutoff(s.newest)
	for symbol, ser := range s.bySymbol {
		ser.trim(cutoff, s.retention.MaxRows)
		if len(ser.rows) == 0 {
			delete(s.bySymbol, symbol)
		}
	}
}

// Len returns the number of rows held for symbol.
func (s *PriceStore) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ser, ok := s.bySymbol[symbol]; ok {
		return len(ser.rows)
	}
	return 0
}

// GetRecent retrieves rows with timestamp >= since, newest first. Rows
// sharing a timestamp are ordered by symbol.
func (s *PriceStore) GetRecent(_ context.Context, since time.Time, limit int) ([]*domain.CryptoPrice, error) {
	limit = storage.ClampLimit(limit, storage.MaxRows)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.CryptoPrice
	for _, ser := range s.bySymbol {
		for _, p := range ser.tail(since, limit) {
			row := *p
			out = append(out, &row)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetBySymbol retrieves rows for a symbol within [start, end], oldest first.
func (s *PriceStore) GetBySymbol(_ context.Context, symbol string, start, end time.Time) ([]*domain.CryptoPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ser, ok := s.bySymbol[symbol]
	if !ok {
		return nil, nil
	}

	var out []*domain.CryptoPrice
	for _, p := range ser.between(start, end) {
		row := *p
		out = append(out, &row)
	}
	return out, nil
}

var _ storage.PriceStore = (*PriceStore)(nil)
