package warehouse

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vectorquant/internal/domain"
	"vectorquant/internal/metrics"
)

// Where a history answer came from.
const (
	SourceWarehouse = "warehouse"
	SourceLive      = "live"
)

// DefaultHistoryWindow is how far back price history reaches by default.
const DefaultHistoryWindow = time.Hour

// LiveSource supplies the current snapshot when the warehouse cannot.
type LiveSource interface {
	Snapshot() domain.Snapshot
}

// History reads warehouse rows through the guard.
type History struct {
	stores Stores
	guard  *Guard
	live   LiveSource
	agg    *metrics.Aggregator
	logger *zap.Logger
	clock  func() time.Time
}

// NewHistory creates a history reader.
func NewHistory(stores Stores, guard *Guard, live LiveSource, logger *zap.Logger) *History {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{
		stores: stores,
		guard:  guard,
		live:   live,
		agg:    metrics.NewAggregator(stores.Metrics),
		logger: logger.Named("history"),
		clock:  time.Now,
	}
}

// Prices returns price rows from the last window, newest first. When the
// warehouse fails or has no rows it answers from the live snapshot instead
// and reports SourceLive.
func (h *History) Prices(ctx context.Context, window time.Duration, limit int) ([]*domain.CryptoPrice, string) {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	since := h.clock().Add(-window)

	rows, err := Query(ctx, h.guard, func(ctx context.Context) ([]*domain.CryptoPrice, error) {
		return h.stores.Prices.GetRecent(ctx, since, limit)
	})
	if err == nil && len(rows) > 0 {
		return rows, SourceWarehouse
	}
	if err != nil {
		h.logger.Warn("price history unavailable, serving live prices", zap.Error(err))
	}
	return h.live.Snapshot().Prices(), SourceLive
}

// SymbolPrices returns one symbol's rows from the last window, oldest first,
// with the same live fallback as Prices.
func (h *History) SymbolPrices(ctx context.Context, symbol string, window time.Duration) ([]*domain.CryptoPrice, string) {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	end := h.clock()

	rows, err := Query(ctx, h.guard, func(ctx context.Context) ([]*domain.CryptoPrice, error) {
		return h.stores.Prices.GetBySymbol(ctx, symbol, end.Add(-window), end)
	})
	if err == nil && len(rows) > 0 {
		return rows, SourceWarehouse
	}
	if err != nil {
		h.logger.Warn("symbol history unavailable, serving live price", zap.String("symbol", symbol), zap.Error(err))
	}

	live := make([]*domain.CryptoPrice, 0, 1)
	for _, p := range h.live.Snapshot().Prices() {
		if p.Symbol == symbol {
			live = append(live, p)
		}
	}
	return live, SourceLive
}

// Summaries summarizes stored trading metrics over the last window. With a
// name only that metric is summarized and an empty window yields an error
// wrapping metrics.ErrNoPoints.
func (h *History) Summaries(ctx context.Context, name string, window time.Duration) ([]*metrics.Summary, error) {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	end := h.clock()
	start := end.Add(-window)

	return Query(ctx, h.guard, func(ctx context.Context) ([]*metrics.Summary, error) {
		if name == "" {
			return h.agg.SummarizeAll(ctx, start, end)
		}
		s, err := h.agg.Summarize(ctx, name, start, end)
		if err != nil {
			return nil, err
		}
		return []*metrics.Summary{s}, nil
	})
}

// Alerts returns at most limit stored alerts, newest first.
func (h *History) Alerts(ctx context.Context, limit int) ([]*domain.AlertRecord, error) {
	return Query(ctx, h.guard, func(ctx context.Context) ([]*domain.AlertRecord, error) {
		return h.stores.Alerts.GetRecent(ctx, limit)
	})
}

// Resolve flips the stored resolved flag of one alert.
// Unknown IDs yield an error wrapping storage.ErrNotFound.
func (h *History) Resolve(ctx context.Context, alertID string) (*domain.AlertRecord, error) {
	return Query(ctx, h.guard, func(ctx context.Context) (*domain.AlertRecord, error) {
		if err := h.stores.Alerts.Resolve(ctx, alertID); err != nil {
			return nil, err
		}
		return h.stores.Alerts.GetByID(ctx, alertID)
	})
}
