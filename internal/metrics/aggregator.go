package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vectorquant/internal/storage"
)

// ErrNoPoints is returned when a window holds no rows for the metric.
var ErrNoPoints = errors.New("no metric points in window")

// Aggregator computes summaries from the trading metrics store.
type Aggregator struct {
	store storage.MetricStore
}

// NewAggregator creates an aggregator over store.
func NewAggregator(store storage.MetricStore) *Aggregator {
	return &Aggregator{store: store}
}

// Summarize computes the summary of one metric within [start, end].
// Returns ErrNoPoints if the window is empty.
func (a *Aggregator) Summarize(ctx context.Context, name string, start, end time.Time) (*Summary, error) {
	points, err := a.store.GetByName(ctx, name, start, end)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	return computeSummary(name, points), nil
}

// SummarizeAll computes one summary per metric name with rows within
// [start, end], ordered by name. Every row of the window is considered.
func (a *Aggregator) SummarizeAll(ctx context.Context, start, end time.Time) ([]*Summary, error) {
	names, err := a.store.GetNames(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load metric names: %w", err)
	}

	out := make([]*Summary, 0, len(names))
	for _, name := range names {
		s, err := a.Summarize(ctx, name, start, end)
		if errors.Is(err, ErrNoPoints) {
			// Pruned between the two reads.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
