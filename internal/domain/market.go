package domain

import (
	"strings"
	"time"
)

// Symbols tracked by the live simulation.
const (
	SymbolBTC = "BTC/USDT"
	SymbolETH = "ETH/USDT"
	SymbolSOL = "SOL/USDT"
	SymbolADA = "ADA/USDT"
	SymbolDOT = "DOT/USDT"
)

// QuoteAsset is the quote currency of every tracked pair.
const QuoteAsset = "USDT"

var knownSymbols = map[string]bool{
	SymbolBTC: true,
	SymbolETH: true,
	SymbolSOL: true,
	SymbolADA: true,
	SymbolDOT: true,
}

// ParseSymbol accepts a pair such as "BTC/USDT" or a bare ticker such as
// "btc", and returns the canonical pair. It reports false for symbols that
// are neither simulated nor seeded.
func ParseSymbol(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !strings.Contains(s, "/") {
		s += "/" + QuoteAsset
	}
	return s, knownSymbols[s]
}

// CryptoPrice represents one price observation.
// Corresponds to crypto_prices table in ClickHouse.
type CryptoPrice struct {
	Symbol    string    // e.g. "BTC/USDT"
	Price     float64   // quote price
	Change24h float64   // fractional change vs. reference price
	Volume24h float64   // quote volume
	MarketCap float64   // quote market cap
	Timestamp time.Time // observation time
}

// TradingMetric represents one named metric observation.
// Corresponds to trading_metrics table in ClickHouse.
type TradingMetric struct {
	MetricName  string
	MetricValue float64
	Timestamp   time.Time
}

// Metric names written for every recorded tick.
const (
	MetricPnL          = "pnl"
	MetricLatencyMs    = "latency_ms"
	MetricOrdersPerSec = "orders_per_second"
	MetricWinRate      = "win_rate"
	MetricSharpeRatio  = "sharpe_ratio"
	MetricMaxDrawdown  = "max_drawdown"
	MetricTotalVolume  = "total_volume"
	MetricErrorRate    = "error_rate"
	MetricCPUUsage     = "cpu_usage"
)

// Prices returns the live market prices of s as warehouse rows.
// Change24h is measured against the initial seed price of each symbol.
func (s Snapshot) Prices() []*CryptoPrice {
	return []*CryptoPrice{
		{Symbol: SymbolBTC, Price: s.State.BTCPrice, Change24h: change(s.State.BTCPrice, InitialBTCPrice), Timestamp: s.Taken},
		{Symbol: SymbolETH, Price: s.State.ETHPrice, Change24h: change(s.State.ETHPrice, InitialETHPrice), Timestamp: s.Taken},
		{Symbol: SymbolSOL, Price: s.State.SOLPrice, Change24h: change(s.State.SOLPrice, InitialSOLPrice), Timestamp: s.Taken},
	}
}

// Metrics returns the headline trading metrics of s as warehouse rows.
func (s Snapshot) Metrics() []*TradingMetric {
	st := s.State
	pairs := []struct {
		name  string
		value float64
	}{
		{MetricPnL, st.PnL},
		{MetricLatencyMs, st.LatencyMs},
		{MetricOrdersPerSec, st.OrdersPerSec},
		{MetricWinRate, st.WinRate},
		{MetricSharpeRatio, st.SharpeRatio},
		{MetricMaxDrawdown, st.MaxDrawdown},
		{MetricTotalVolume, st.TotalVolume},
		{MetricErrorRate, st.ErrorRate},
		{MetricCPUUsage, st.CPUUsage},
	}

	out := make([]*TradingMetric, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, &TradingMetric{MetricName: p.name, MetricValue: p.value, Timestamp: s.Taken})
	}
	return out
}

func change(price, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (price - ref) / ref
}
