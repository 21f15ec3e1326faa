// Package alerting derives threshold alerts from a metrics snapshot.
package alerting

import (
	"fmt"

	"vectorquant/internal/domain"
)

// Thresholds at which each rule fires. Comparisons are strict.
const (
	ErrorRateThreshold = 0.02
	LatencyThresholdMs = 30.0
	LossThreshold      = -100.0
	CPUThreshold       = 0.8
)

// Rule is one stateless alert condition.
type Rule struct {
	Kind     domain.AlertKind
	Severity domain.Severity
	Fires    func(s domain.MetricsState) bool
	Message  func(s domain.MetricsState) string
}

// DefaultRules returns the built-in rule table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Kind:     domain.AlertKindError,
			Severity: domain.SeverityHigh,
			Fires:    func(s domain.MetricsState) bool { return s.ErrorRate > ErrorRateThreshold },
			Message: func(s domain.MetricsState) string {
				return fmt.Sprintf("High error rate detected: %.2f%%", s.ErrorRate*100)
			},
		},
		{
			Kind:     domain.AlertKindPerformance,
			Severity: domain.SeverityMedium,
			Fires:    func(s domain.MetricsState) bool { return s.LatencyMs > LatencyThresholdMs },
			Message: func(s domain.MetricsState) string {
				return fmt.Sprintf("High latency detected: %.1fms", s.LatencyMs)
			},
		},
		{
			Kind:     domain.AlertKindTrading,
			Severity: domain.SeverityHigh,
			Fires:    func(s domain.MetricsState) bool { return s.PnL < LossThreshold },
			Message: func(s domain.MetricsState) string {
				return fmt.Sprintf("Significant loss detected: $%.2f", s.PnL)
			},
		},
		{
			Kind:     domain.AlertKindSystem,
			Severity: domain.SeverityMedium,
			Fires:    func(s domain.MetricsState) bool { return s.CPUUsage > CPUThreshold },
			Message: func(s domain.MetricsState) string {
				return fmt.Sprintf("High CPU usage: %.1f%%", s.CPUUsage*100)
			},
		},
	}
}

// Evaluator applies a fixed rule table to snapshots. It keeps no state
// between calls, so the same snapshot always yields the same alerts.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator creates an evaluator over rules, or DefaultRules when none are given.
func NewEvaluator(rules ...Rule) *Evaluator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Evaluator{rules: rules}
}

// Evaluate returns one alert per firing rule, in rule order, stamped with the
// snapshot's capture time. The result is empty, never nil, when nothing fires.
func (e *Evaluator) Evaluate(snap domain.Snapshot) []domain.Alert {
	alerts := make([]domain.Alert, 0, len(e.rules))
	for _, r := range e.rules {
		if !r.Fires(snap.State) {
			continue
		}
		alerts = append(alerts, domain.Alert{
			Kind:      r.Kind,
			Message:   r.Message(snap.State),
			Severity:  r.Severity,
			Timestamp: snap.Taken,
		})
	}
	return alerts
}
