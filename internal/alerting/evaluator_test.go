package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorquant/internal/domain"
)

func quiet() domain.MetricsState {
	s := domain.Initial()
	s.ErrorRate = 0.01
	s.LatencyMs = 20
	s.PnL = 0
	s.CPUUsage = 0.5
	return s
}

func TestEvaluate_NoAlerts(t *testing.T) {
	alerts := NewEvaluator().Evaluate(domain.Snapshot{State: quiet(), Taken: time.Now()})
	require.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestEvaluate_SingleRules(t *testing.T) {
	taken := time.Unix(1700000000, 0)

	tests := []struct {
		name     string
		mutate   func(*domain.MetricsState)
		kind     domain.AlertKind
		severity domain.Severity
		message  string
	}{
		{
			name:     "error rate",
			mutate:   func(s *domain.MetricsState) { s.ErrorRate = 0.03 },
			kind:     domain.AlertKindError,
			severity: domain.SeverityHigh,
			message:  "High error rate detected: 3.00%",
		},
		{
			name:     "latency",
			mutate:   func(s *domain.MetricsState) { s.LatencyMs = 31.24 },
			kind:     domain.AlertKindPerformance,
			severity: domain.SeverityMedium,
			message:  "High latency detected: 31.2ms",
		},
		{
			name:     "loss",
			mutate:   func(s *domain.MetricsState) { s.PnL = -150 },
			kind:     domain.AlertKindTrading,
			severity: domain.SeverityHigh,
			message:  "Significant loss detected: $-150.00",
		},
		{
			name:     "cpu",
			mutate:   func(s *domain.MetricsState) { s.CPUUsage = 0.85 },
			kind:     domain.AlertKindSystem,
			severity: domain.SeverityMedium,
			message:  "High CPU usage: 85.0%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := quiet()
			tt.mutate(&s)

			alerts := NewEvaluator().Evaluate(domain.Snapshot{State: s, Taken: taken})
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.kind, alerts[0].Kind)
			assert.Equal(t, tt.severity, alerts[0].Severity)
			assert.Equal(t, tt.message, alerts[0].Message)
			assert.Equal(t, taken, alerts[0].Timestamp)
		})
	}
}

func TestEvaluate_ThresholdsAreStrict(t *testing.T) {
	s := quiet()
	s.ErrorRate = ErrorRateThreshold
	s.LatencyMs = LatencyThresholdMs
	s.PnL = LossThreshold
	s.CPUUsage = CPUThreshold

	assert.Empty(t, NewEvaluator().Evaluate(domain.Snapshot{State: s}))
}

func TestEvaluate_AllRulesInOrder(t *testing.T) {
	s := quiet()
	s.ErrorRate = 0.04
	s.LatencyMs = 34
	s.PnL = -300
	s.CPUUsage = 0.9

	alerts := NewEvaluator().Evaluate(domain.Snapshot{State: s})
	require.Len(t, alerts, 4)

	kinds := make([]domain.AlertKind, len(alerts))
	for i, a := range alerts {
		kinds[i] = a.Kind
	}
	assert.Equal(t, []domain.AlertKind{
		domain.AlertKindError,
		domain.AlertKindPerformance,
		domain.AlertKindTrading,
		domain.AlertKindSystem,
	}, kinds)
}

func TestEvaluate_IndependentOfOtherFields(t *testing.T) {
	// Healthy error rate with a loss still produces exactly one trading alert.
	s := quiet()
	s.PnL = -150
	s.SystemLoad = 0.99
	s.MemoryUsage = 0.99

	alerts := NewEvaluator().Evaluate(domain.Snapshot{State: s})
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertKindTrading, alerts[0].Kind)
}

func TestEvaluate_CustomRules(t *testing.T) {
	rule := Rule{
		Kind:     domain.AlertKindSystem,
		Severity: domain.SeverityWarning,
		Fires:    func(s domain.MetricsState) bool { return s.MemoryUsage > 0.7 },
		Message:  func(domain.MetricsState) string { return "memory" },
	}
	s := quiet()
	s.MemoryUsage = 0.75
	s.PnL = -400

	alerts := NewEvaluator(rule).Evaluate(domain.Snapshot{State: s})
	require.Len(t, alerts, 1)
	assert.Equal(t, "memory", alerts[0].Message)
}
