package domain

import "time"

// Seed values for a freshly started process.
const (
	InitialBTCPrice    = 65000.0
	InitialETHPrice    = 3500.0
	InitialSOLPrice    = 150.0
	InitialRiskLimit   = 2000.0
	InitialTemperature = 1.0
)

// P&L clamp bounds. Ticks never leave PnL outside [PnLFloor, PnLCeiling].
const (
	PnLFloor   = -500.0
	PnLCeiling = 1000.0
)

// MetricsState is the simulated trading/system/market record.
// It holds only values, so a plain assignment is a full copy.
type MetricsState struct {
	// Trading
	PnL             float64 // clamped to [PnLFloor, PnLCeiling]
	LatencyMs       float64 // redrawn each tick
	OrdersPerSec    float64 // redrawn each tick
	WinRate         float64 // fraction in [0,1]
	MaxDrawdown     float64 // fraction in [0,1]
	SharpeRatio     float64
	ActivePositions int
	TotalVolume     float64 // monotonic accumulator

	// Windowed P&L accumulators (no reset)
	DailyPnL   float64
	WeeklyPnL  float64
	MonthlyPnL float64

	// Market (unbounded random walk)
	BTCPrice float64
	ETHPrice float64
	SOLPrice float64

	// System health
	SystemLoad     float64 // fraction
	MemoryUsage    float64 // fraction
	CPUUsage       float64 // fraction
	NetworkLatency float64 // ms
	ErrorRate      float64 // fraction
	UptimeHours    float64 // monotonic

	// Control, set only through ApplyControls
	Mode        Mode
	RiskLimit   float64
	Temperature float64
}

// Controls is the operator-settable part of MetricsState.
type Controls struct {
	Mode        Mode
	RiskLimit   float64
	Temperature float64
}

// Initial returns the state a process starts with.
func Initial() MetricsState {
	return MetricsState{
		BTCPrice:    InitialBTCPrice,
		ETHPrice:    InitialETHPrice,
		SOLPrice:    InitialSOLPrice,
		Mode:        ModeShadow,
		RiskLimit:   InitialRiskLimit,
		Temperature: InitialTemperature,
	}
}

// ApplyControls overwrites the three control fields.
// Returns ErrInvalidMode and leaves the state untouched if c.Mode is not valid.
func (s *MetricsState) ApplyControls(c Controls) error {
	if !c.Mode.IsValid() {
		return ErrInvalidMode
	}
	s.Mode = c.Mode
	s.RiskLimit = c.RiskLimit
	s.Temperature = c.Temperature
	return nil
}

// Controls returns the current control fields.
func (s MetricsState) Controls() Controls {
	return Controls{Mode: s.Mode, RiskLimit: s.RiskLimit, Temperature: s.Temperature}
}

// Snapshot is an immutable point-in-time copy of MetricsState.
type Snapshot struct {
	State MetricsState
	Taken time.Time
	// Seq is the number of ticks applied when the copy was taken. Zero means
	// the snapshot did not come from a live engine.
	Seq uint64
}

// Seconds returns the capture time as fractional seconds since the epoch.
func (s Snapshot) Seconds() float64 {
	return UnixSeconds(s.Taken)
}

// UnixSeconds converts t to fractional seconds since the epoch.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
