package memory

import (
	"sort"
	"time"
)

// Retention defaults. One day of rows at one tick per second.
const (
	DefaultHorizon = 24 * time.Hour
	DefaultMaxRows = 86_400
)

// Retention bounds what an in-memory store keeps.
type Retention struct {
	// Horizon drops rows older than the newest stored row minus Horizon.
	// Zero keeps rows of any age.
	Horizon time.Duration
	// MaxRows caps each series, dropping the oldest rows first.
	// Zero means no cap.
	MaxRows int
}

// Option configures the retention of a memory store.
type Option func(*Retention)

// WithHorizon sets the age horizon.
func WithHorizon(d time.Duration) Option {
	return func(r *Retention) {
		r.Horizon = d
	}
}

// WithMaxRows sets the per-series row cap.
func WithMaxRows(n int) Option {
	return func(r *Retention) {
		r.MaxRows = n
	}
}

func newRetention(opts []Option) Retention {
	r := Retention{Horizon: DefaultHorizon, MaxRows: DefaultMaxRows}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// cutoff returns the oldest timestamp a store whose newest row is at newest
// may keep.
func (r Retention) cutoff(newest time.Time) time.Time {
	if r.Horizon <= 0 || newest.IsZero() {
		return time.Time{}
	}
	return newest.Add(-r.Horizon)
}

// series keeps rows ordered by timestamp, oldest first.
type series[T any] struct {
	rows []*T
	at   func(*T) time.Time
}

func newSeries[T any](at func(*T) time.Time) *series[T] {
	return &series[T]{at: at}
}

// insert places row after every row with an equal or older timestamp.
func (s *series[T]) insert(row *T) {
	t := s.at(row)
	n := len(s.rows)
	if n == 0 || !t.Before(s.at(s.rows[n-1])) {
		s.rows = append(s.rows, row)
		return
	}
	i := sort.Search(n, func(i int) bool { return s.at(s.rows[i]).After(t) })
	s.rows = append(s.rows, nil)
	copy(s.rows[i+1:], s.rows[i:])
	s.rows[i] = row
}

// from returns the index of the first row at or after t.
func (s *series[T]) from(t time.Time) int {
	return sort.Search(len(s.rows), func(i int) bool { return !s.at(s.rows[i]).Before(t) })
}

// between returns the rows within [start, end], oldest first. The result
// aliases the series.
func (s *series[T]) between(start, end time.Time) []*T {
	i := s.from(start)
	j := sort.Search(len(s.rows), func(k int) bool { return s.at(s.rows[k]).After(end) })
	if j <= i {
		return nil
	}
	return s.rows[i:j]
}

// tail returns at most n of the newest rows at or after since, oldest first.
// The result aliases the series.
func (s *series[T]) tail(since time.Time, n int) []*T {
	i := s.from(since)
	if len(s.rows)-i > n {
		i = len(s.rows) - n
	}
	return s.rows[i:]
}

// trim drops rows older than cutoff, then the oldest rows beyond maxRows.
func (s *series[T]) trim(cutoff time.Time, maxRows int) {
	drop := 0
	if !cutoff.IsZero() {
		drop = s.from(cutoff)
	}
	if maxRows > 0 && len(s.rows)-drop > maxRows {
		drop = len(s.rows) - maxRows
	}
	if drop == 0 {
		return
	}
	clear(s.rows[:drop])
	s.rows = s.rows[drop:]
}
