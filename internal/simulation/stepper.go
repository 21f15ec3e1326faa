// Package simulation fabricates plausible trading, market and system metrics.
package simulation

import "vectorquant/internal/domain"

// Range is a closed draw interval.
type Range struct {
	Lo, Hi float64
}

// Contains reports whether v lies in [Lo, Hi].
func (r Range) Contains(v float64) bool {
	return v >= r.Lo && v <= r.Hi
}

// Per-tick draw ranges.
var (
	PnLDelta = Range{-5, 5}

	LatencyRange      = Range{5, 35}
	OrdersPerSecRange = Range{10, 40}

	WinRateRange     = Range{0.45, 0.75}
	MaxDrawdownRange = Range{0.05, 0.25}
	SharpeRange      = Range{0.8, 2.5}
	MaxPositions     = 15

	DailyPnLDelta   = Range{-50, 50}
	WeeklyPnLDelta  = Range{-200, 200}
	MonthlyPnLDelta = Range{-800, 800}

	BTCDelta = Range{-500, 500}
	ETHDelta = Range{-50, 50}
	SOLDelta = Range{-5, 5}

	SystemLoadRange     = Range{0.1, 0.9}
	MemoryUsageRange    = Range{0.2, 0.8}
	CPUUsageRange       = Range{0.1, 0.7}
	NetworkLatencyRange = Range{1, 10}
	ErrorRateRange      = Range{0.001, 0.05}

	VolumeDelta = Range{1000, 5000}
)

// DefaultUptimeStep is the uptime added per tick, in hours.
const DefaultUptimeStep = 0.001

// Stepper advances a MetricsState by one tick.
// It is not safe for concurrent use; callers serialize ticks.
type Stepper struct {
	rng        RandomSource
	uptimeStep float64
}

// StepperOption configures a Stepper.
type StepperOption func(*Stepper)

// WithUptimeStep overrides the per-tick uptime increment.
func WithUptimeStep(step float64) StepperOption {
	return func(s *Stepper) {
		s.uptimeStep = step
	}
}

// NewStepper creates a stepper drawing from rng.
func NewStepper(rng RandomSource, opts ...StepperOption) *Stepper {
	s := &Stepper{
		rng:        rng,
		uptimeStep: DefaultUptimeStep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick returns the state one step after s. Draw order is fixed so that a
// seeded source reproduces the same sequence. Control fields pass through.
func (st *Stepper) Tick(s domain.MetricsState) domain.MetricsState {
	r := st.rng

	// Bounded P&L walk: clamp to the bound, never re-draw.
	s.PnL = clamp(s.PnL+draw(r, PnLDelta), domain.PnLFloor, domain.PnLCeiling)

	s.LatencyMs = draw(r, LatencyRange)
	s.OrdersPerSec = draw(r, OrdersPerSecRange)

	s.WinRate = draw(r, WinRateRange)
	s.MaxDrawdown = draw(r, MaxDrawdownRange)
	s.SharpeRatio = draw(r, SharpeRange)
	s.ActivePositions = uniformInt(r, 0, MaxPositions)

	s.DailyPnL += draw(r, DailyPnLDelta)
	s.WeeklyPnL += draw(r, WeeklyPnLDelta)
	s.MonthlyPnL += draw(r, MonthlyPnLDelta)

	s.BTCPrice += draw(r, BTCDelta)
	s.ETHPrice += draw(r, ETHDelta)
	s.SOLPrice += draw(r, SOLDelta)

	s.SystemLoad = draw(r, SystemLoadRange)
	s.MemoryUsage = draw(r, MemoryUsageRange)
	s.CPUUsage = draw(r, CPUUsageRange)
	s.NetworkLatency = draw(r, NetworkLatencyRange)
	s.ErrorRate = draw(r, ErrorRateRange)

	s.UptimeHours += st.uptimeStep

	s.TotalVolume += draw(r, VolumeDelta)

	return s
}

func draw(r RandomSource, rg Range) float64 {
	return uniform(r, rg.Lo, rg.Hi)
}
