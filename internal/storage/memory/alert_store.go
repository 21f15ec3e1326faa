package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
// The alert log is pruned oldest-inserted first according to its Retention.
type AlertStore struct {
	mu        sync.RWMutex
	retention Retention
	byID      map[string]*domain.AlertRecord
	order     []string // insertion order, for stable ties
	newest    time.Time
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore(opts ...Option) *AlertStore {
	return &AlertStore{
		retention: newRetention(opts),
		byID:      make(map[string]*domain.AlertRecord),
	}
}

// Len returns the number of alerts held.
func (s *AlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// add stores a copy of a. Callers hold mu.
func (s *AlertStore) add(a *domain.AlertRecord) {
	row := *a
	s.byID[a.AlertID] = &row
	s.order = append(s.order, a.AlertID)
	if row.Timestamp.After(s.newest) {
		s.newest = row.Timestamp
	}
}

// prune drops expired alerts from the front of the log, then the oldest
// alerts beyond the row cap. Callers hold mu.
func (s *AlertStore) prune() {
	cutoff := s.retention.cutoff(s.newest)
	drop := 0
	if !cutoff.IsZero() {
		for drop < len(s.order) && s.byID[s.order[drop]].Timestamp.Before(cutoff) {
			drop++
		}
	}
	if limit := s.retention.MaxRows; limit > 0 && len(s.order)-drop > limit {
		drop = len(s.order) - limit
	}
	for _, id := range s.order[:drop] {
		delete(s.byID, id)
	}
	clear(s.order[:drop])
	s.order = s.order[drop:]
}

// Insert adds an alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(_ context.Context, a *domain.AlertRecord) error {
	if a == nil || a.AlertType == "" {
		return storage.ErrInvalidInput
	}
	storage.AssignAlertID(a)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[a.AlertID]; exists {
		return storage.ErrDuplicateKey
	}

	s.add(a)
	s.prune()
	return nil
}

// InsertBulk adds multiple alerts atomically.
func (s *AlertStore) InsertBulk(_ context.Context, alerts []*domain.AlertRecord) error {
	for _, a := range alerts {
		if a == nil || a.AlertType == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		storage.AssignAlertID(a)
		if _, exists := s.byID[a.AlertID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := seen[a.AlertID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[a.AlertID] = struct{}{}
	}

	for _, a := range alerts {
		s.add(a)
	}
	s.prune()
	return nil
}

// GetByID retrieves an alert by its ID. Returns ErrNotFound if not exists.
func (s *AlertStore) GetByID(_ context.Context, alertID string) (*domain.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.byID[alertID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	row := *a
	return &row, nil
}

// GetRecent retrieves at most limit alerts, newest first.
func (s *AlertStore) GetRecent(_ context.Context, limit int) ([]*domain.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.AlertRecord, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		row := *s.byID[s.order[i]]
		out = append(out, &row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	limit = storage.ClampLimit(limit, storage.MaxRows)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Resolve marks an alert as resolved. Returns ErrNotFound if not exists.
func (s *AlertStore) Resolve(_ context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.byID[alertID]
	if !exists {
		return storage.ErrNotFound
	}
	a.Resolved = true
	return nil
}

var _ storage.AlertStore = (*AlertStore)(nil)
