package simulation

import (
	"math"

	"vectorquant/internal/domain"
)

// Ranges used when no server is reachable.
var (
	FallbackPnLStdDev         = 50.0
	FallbackLatencyRange      = Range{5, 40}
	FallbackOrdersPerSecRange = Range{10, 35}
)

// Fallback draws a standalone snapshot for a dashboard that lost its server.
// The operator's controls are carried through so the UI keeps showing them.
func Fallback(r RandomSource, c domain.Controls) domain.MetricsState {
	s := NewStepper(r).Tick(domain.Initial())

	s.PnL = normal(r) * FallbackPnLStdDev
	s.LatencyMs = draw(r, FallbackLatencyRange)
	s.OrdersPerSec = draw(r, FallbackOrdersPerSecRange)

	s.Mode = c.Mode
	s.RiskLimit = c.RiskLimit
	s.Temperature = c.Temperature
	return s
}

// normal draws from the standard normal distribution (Box-Muller).
func normal(r RandomSource) float64 {
	u1 := r.Float64()
	for u1 == 0 {
		u1 = r.Float64()
	}
	u2 := r.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
