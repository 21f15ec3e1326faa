package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage/memory"
)

func TestAggregator_Summarize(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMetricStore()
	if err := store.InsertBulk(ctx, append(series(domain.MetricPnL, 1, 2, 3), series(domain.MetricLatencyMs, 20)...)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	agg := NewAggregator(store)
	start := time.Unix(1700000000, 0)

	s, err := agg.Summarize(ctx, domain.MetricPnL, start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Count != 3 || s.Mean != 2 {
		t.Errorf("expected count 3 mean 2, got %d %f", s.Count, s.Mean)
	}

	// Window excludes the first point.
	s, err = agg.Summarize(ctx, domain.MetricPnL, start.Add(time.Minute), start.Add(time.Hour))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Count != 2 || s.First != 2 {
		t.Errorf("expected count 2 first 2, got %d %f", s.Count, s.First)
	}
}

func TestAggregator_SummarizeEmpty(t *testing.T) {
	agg := NewAggregator(memory.NewMetricStore())
	now := time.Now()

	_, err := agg.Summarize(context.Background(), domain.MetricPnL, now.Add(-time.Hour), now)
	if !errors.Is(err, ErrNoPoints) {
		t.Errorf("expected ErrNoPoints, got %v", err)
	}
}

func TestAggregator_SummarizeAll(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMetricStore()
	if err := store.InsertBulk(ctx, append(series(domain.MetricPnL, 1, 2), series(domain.MetricCPUUsage, 0.5)...)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	start := time.Unix(1700000000, 0)
	out, err := NewAggregator(store).SummarizeAll(ctx, start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("summarize all: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(out))
	}
	if out[0].Name != domain.MetricCPUUsage || out[1].Name != domain.MetricPnL {
		t.Errorf("expected summaries ordered by name, got %s, %s", out[0].Name, out[1].Name)
	}
	if out[1].Count != 2 {
		t.Errorf("expected 2 pnl points, got %d", out[1].Count)
	}
}

func TestAggregator_SummarizeAll_FullWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMetricStore()
	start := time.Unix(1700000000, 0)

	// 600 ticks of every metric is well past any single page of rows.
	for i := 0; i < 600; i++ {
		snap := domain.Snapshot{State: domain.Initial(), Taken: start.Add(time.Duration(i) * time.Second)}
		snap.State.PnL = float64(i)
		if err := store.InsertBulk(ctx, snap.Metrics()); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	agg := NewAggregator(store)
	end := start.Add(30 * time.Minute)

	all, err := agg.SummarizeAll(ctx, start, end)
	if err != nil {
		t.Fatalf("summarize all: %v", err)
	}
	if len(all) != len(domain.Snapshot{}.Metrics()) {
		t.Fatalf("expected one summary per metric, got %d", len(all))
	}

	one, err := agg.Summarize(ctx, domain.MetricPnL, start, end)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	var pnl *Summary
	for _, s := range all {
		if s.Name == domain.MetricPnL {
			pnl = s
		}
	}
	if pnl == nil {
		t.Fatal("expected a pnl summary")
	}
	if pnl.Count != 600 || pnl.First != 0 || pnl.Mean != 299.5 {
		t.Errorf("expected count 600 first 0 mean 299.5, got %d %f %f", pnl.Count, pnl.First, pnl.Mean)
	}
	if pnl.Count != one.Count || pnl.Mean != one.Mean {
		t.Errorf("expected named and unnamed summaries to agree, got %+v vs %+v", pnl, one)
	}
}
