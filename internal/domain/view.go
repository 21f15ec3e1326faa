package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places. A value whose
// shortest decimal form sits exactly halfway is judged on its exact binary
// value, and true ties go to the even digit, so Round(2.675, 2) is 2.67 and
// Round(0.125, 2) is 0.12.
func Round(v float64, places int32) float64 {
	d := decimal.NewFromFloat(v)
	if !halfway(d, places) {
		return d.Round(places).InexactFloat64()
	}

	switch new(big.Rat).SetFloat64(v).Cmp(d.Rat()) {
	case 1:
		return d.RoundCeil(places).InexactFloat64()
	case -1:
		return d.RoundFloor(places).InexactFloat64()
	default:
		return d.RoundBank(places).InexactFloat64()
	}
}

// halfway reports whether d ends in a single 5 just past places.
func halfway(d decimal.Decimal, places int32) bool {
	coef := new(big.Int).Abs(d.Coefficient())
	exp := d.Exponent()
	ten := big.NewInt(10)
	rem := new(big.Int)
	for coef.Sign() != 0 {
		q, r := new(big.Int).QuoRem(coef, ten, rem)
		if r.Sign() != 0 {
			break
		}
		coef = q
		exp++
	}
	return exp == -(places+1) && rem.Mod(coef, ten).Int64() == 5
}

// MetricsView is the flat wire form of a snapshot. Field precisions are part
// of the consumer contract; see NewMetricsView.
type MetricsView struct {
	PnL          float64 `json:"pnl"`
	LatencyMs    float64 `json:"latency_ms"`
	OrdersPerSec float64 `json:"orders_per_sec"`
	RiskLimit    float64 `json:"risk_limit"`
	Temperature  float64 `json:"temperature"`
	Mode         Mode    `json:"mode"`

	TotalVolume     float64 `json:"total_volume"`
	WinRate         float64 `json:"win_rate"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	ActivePositions int     `json:"active_positions"`

	DailyPnL   float64 `json:"daily_pnl"`
	WeeklyPnL  float64 `json:"weekly_pnl"`
	MonthlyPnL float64 `json:"monthly_pnl"`

	BTCPrice float64 `json:"btc_price"`
	ETHPrice float64 `json:"eth_price"`
	SOLPrice float64 `json:"sol_price"`

	SystemLoad     float64 `json:"system_load"`
	MemoryUsage    float64 `json:"memory_usage"`
	CPUUsage       float64 `json:"cpu_usage"`
	NetworkLatency float64 `json:"network_latency"`
	ErrorRate      float64 `json:"error_rate"`
	UptimeHours    float64 `json:"uptime_hours"`

	Timestamp float64 `json:"timestamp"`
}

// NewMetricsView rounds every field of s to its published precision.
func NewMetricsView(s Snapshot) MetricsView {
	st := s.State
	return MetricsView{
		PnL:          Round(st.PnL, 2),
		LatencyMs:    Round(st.LatencyMs, 1),
		OrdersPerSec: Round(st.OrdersPerSec, 1),
		RiskLimit:    st.RiskLimit,
		Temperature:  st.Temperature,
		Mode:         st.Mode,

		TotalVolume:     Round(st.TotalVolume, 2),
		WinRate:         Round(st.WinRate, 3),
		MaxDrawdown:     Round(st.MaxDrawdown, 3),
		SharpeRatio:     Round(st.SharpeRatio, 2),
		ActivePositions: st.ActivePositions,

		DailyPnL:   Round(st.DailyPnL, 2),
		WeeklyPnL:  Round(st.WeeklyPnL, 2),
		MonthlyPnL: Round(st.MonthlyPnL, 2),

		BTCPrice: Round(st.BTCPrice, 2),
		ETHPrice: Round(st.ETHPrice, 2),
		SOLPrice: Round(st.SOLPrice, 2),

		SystemLoad:     Round(st.SystemLoad, 3),
		MemoryUsage:    Round(st.MemoryUsage, 3),
		CPUUsage:       Round(st.CPUUsage, 3),
		NetworkLatency: Round(st.NetworkLatency, 2),
		ErrorRate:      Round(st.ErrorRate, 4),
		UptimeHours:    Round(st.UptimeHours, 2),

		Timestamp: s.Seconds(),
	}
}

// State converts a view back into a MetricsState. Precision lost to rounding
// is not recovered.
func (v MetricsView) State() MetricsState {
	return MetricsState{
		PnL:             v.PnL,
		LatencyMs:       v.LatencyMs,
		OrdersPerSec:    v.OrdersPerSec,
		WinRate:         v.WinRate,
		MaxDrawdown:     v.MaxDrawdown,
		SharpeRatio:     v.SharpeRatio,
		ActivePositions: v.ActivePositions,
		TotalVolume:     v.TotalVolume,
		DailyPnL:        v.DailyPnL,
		WeeklyPnL:       v.WeeklyPnL,
		MonthlyPnL:      v.MonthlyPnL,
		BTCPrice:        v.BTCPrice,
		ETHPrice:        v.ETHPrice,
		SOLPrice:        v.SOLPrice,
		SystemLoad:      v.SystemLoad,
		MemoryUsage:     v.MemoryUsage,
		CPUUsage:        v.CPUUsage,
		NetworkLatency:  v.NetworkLatency,
		ErrorRate:       v.ErrorRate,
		UptimeHours:     v.UptimeHours,
		Mode:            v.Mode,
		RiskLimit:       v.RiskLimit,
		Temperature:     v.Temperature,
	}
}

// PerformanceView is the performance analytics subset.
type PerformanceView struct {
	SharpeRatio     float64 `json:"sharpe_ratio"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	WinRate         float64 `json:"win_rate"`
	TotalVolume     float64 `json:"total_volume"`
	ActivePositions int     `json:"active_positions"`
	DailyPnL        float64 `json:"daily_pnl"`
	WeeklyPnL       float64 `json:"weekly_pnl"`
	MonthlyPnL      float64 `json:"monthly_pnl"`
	Timestamp       float64 `json:"timestamp"`
}

// NewPerformanceView builds the performance subset of s.
func NewPerformanceView(s Snapshot) PerformanceView {
	v := NewMetricsView(s)
	return PerformanceView{
		SharpeRatio:     v.SharpeRatio,
		MaxDrawdown:     v.MaxDrawdown,
		WinRate:         v.WinRate,
		TotalVolume:     v.TotalVolume,
		ActivePositions: v.ActivePositions,
		DailyPnL:        v.DailyPnL,
		WeeklyPnL:       v.WeeklyPnL,
		MonthlyPnL:      v.MonthlyPnL,
		Timestamp:       v.Timestamp,
	}
}

// SystemView is the system health subset.
type SystemView struct {
	SystemLoad     float64 `json:"system_load"`
	MemoryUsage    float64 `json:"memory_usage"`
	CPUUsage       float64 `json:"cpu_usage"`
	NetworkLatency float64 `json:"network_latency"`
	ErrorRate      float64 `json:"error_rate"`
	UptimeHours    float64 `json:"uptime_hours"`
	Timestamp      float64 `json:"timestamp"`
}

// NewSystemView builds the system health subset of s.
func NewSystemView(s Snapshot) SystemView {
	v := NewMetricsView(s)
	return SystemView{
		SystemLoad:     v.SystemLoad,
		MemoryUsage:    v.MemoryUsage,
		CPUUsage:       v.CPUUsage,
		NetworkLatency: v.NetworkLatency,
		ErrorRate:      v.ErrorRate,
		UptimeHours:    v.UptimeHours,
		Timestamp:      v.Timestamp,
	}
}

// PricesView is the market price subset.
type PricesView struct {
	BTCPrice  float64 `json:"btc_price"`
	ETHPrice  float64 `json:"eth_price"`
	SOLPrice  float64 `json:"sol_price"`
	Timestamp float64 `json:"timestamp"`
}

// NewPricesView builds the market price subset of s.
func NewPricesView(s Snapshot) PricesView {
	return PricesView{
		BTCPrice:  Round(s.State.BTCPrice, 2),
		ETHPrice:  Round(s.State.ETHPrice, 2),
		SOLPrice:  Round(s.State.SOLPrice, 2),
		Timestamp: s.Seconds(),
	}
}

// AlertView is the wire form of an Alert.
type AlertView struct {
	Type      AlertKind `json:"type"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp float64   `json:"timestamp"`
}

// NewAlertViews converts alerts to their wire form, preserving order.
func NewAlertViews(alerts []Alert) []AlertView {
	out := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertView{
			Type:      a.Kind,
			Message:   a.Message,
			Severity:  a.Severity,
			Timestamp: UnixSeconds(a.Timestamp),
		})
	}
	return out
}
