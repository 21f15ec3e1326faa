package simulation

import (
	"time"

	"vectorquant/internal/domain"
)

// Warehouse seed parameters.
const (
	SeedWindow   = 24 * time.Hour
	SeedInterval = 5 * time.Minute
)

// SeedBasePrices are the reference prices sample rows vary around.
var SeedBasePrices = []struct {
	Symbol string
	Price  float64
}{
	{domain.SymbolBTC, 65000},
	{domain.SymbolETH, 3500},
	{domain.SymbolSOL, 150},
	{domain.SymbolADA, 0.5},
	{domain.SymbolDOT, 25},
}

// SeedData is the sample content written by provisioning.
type SeedData struct {
	Prices  []*domain.CryptoPrice
	Metrics []*domain.TradingMetric
	Alerts  []*domain.AlertRecord
}

// SeedRows generates sample warehouse rows covering the SeedWindow that ends at end.
// Alert IDs are left empty for the store to assign.
func SeedRows(r RandomSource, end time.Time) SeedData {
	var out SeedData

	for ts := end.Add(-SeedWindow); !ts.After(end); ts = ts.Add(SeedInterval) {
		for _, base := range SeedBasePrices {
			price := base.Price * (1 + uniform(r, -0.05, 0.05))
			out.Prices = append(out.Prices, &domain.CryptoPrice{
				Symbol:    base.Symbol,
				Price:     domain.Round(price, 2),
				Change24h: domain.Round(uniform(r, -0.1, 0.1), 4),
				Volume24h: domain.Round(uniform(r, 1e6, 1e7), 2),
				MarketCap: domain.Round(price*uniform(r, 1e6, 1e7), 2),
				Timestamp: ts,
			})
		}
	}

	metrics := []struct {
		name string
		rg   Range
	}{
		{domain.MetricPnL, Range{-50000, 100000}},
		{domain.MetricLatencyMs, Range{5, 30}},
		{domain.MetricOrdersPerSec, Range{40, 90}},
		{domain.MetricWinRate, Range{0.6, 0.9}},
		{domain.MetricSharpeRatio, Range{1.0, 3.5}},
		{domain.MetricMaxDrawdown, Range{0.05, 0.2}},
	}
	for _, m := range metrics {
		out.Metrics = append(out.Metrics, &domain.TradingMetric{
			MetricName:  m.name,
			MetricValue: draw(r, m.rg),
			Timestamp:   end,
		})
	}

	out.Alerts = []*domain.AlertRecord{
		{AlertType: "HIGH_LATENCY", Message: "Latency exceeded threshold", Severity: "WARNING", Timestamp: end},
		{AlertType: "SYSTEM_HEALTH", Message: "All systems operational", Severity: "INFO", Timestamp: end},
		{AlertType: "PERFORMANCE", Message: "Trading performance within normal range", Severity: "INFO", Timestamp: end},
	}

	return out
}
