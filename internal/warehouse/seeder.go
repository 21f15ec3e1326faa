package warehouse

import (
	"context"
	"fmt"
	"time"

	"vectorquant/internal/simulation"
)

// SeedResult counts the rows written by Seed.
type SeedResult struct {
	Prices  int
	Metrics int
	Alerts  int
}

// Seed writes a day of sample rows ending at end into stores.
func Seed(ctx context.Context, stores Stores, rng simulation.RandomSource, end time.Time) (SeedResult, error) {
	data := simulation.SeedRows(rng, end)

	if err := stores.Prices.InsertBulk(ctx, data.Prices); err != nil {
		return SeedResult{}, fmt.Errorf("seed %s: %w", TablePrices, err)
	}
	if err := stores.Metrics.InsertBulk(ctx, data.Metrics); err != nil {
		return SeedResult{}, fmt.Errorf("seed %s: %w", TableMetrics, err)
	}
	if err := stores.Alerts.InsertBulk(ctx, data.Alerts); err != nil {
		return SeedResult{}, fmt.Errorf("seed %s: %w", TableAlerts, err)
	}

	return SeedResult{
		Prices:  len(data.Prices),
		Metrics: len(data.Metrics),
		Alerts:  len(data.Alerts),
	}, nil
}
