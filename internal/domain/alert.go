package domain

import "time"

// AlertKind classifies what an alert is about.
type AlertKind string

const (
	AlertKindError       AlertKind = "error"
	AlertKindPerformance AlertKind = "performance"
	AlertKindTrading     AlertKind = "trading"
	AlertKindSystem      AlertKind = "system"
)

// Severity of an alert.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
)

// Alert is produced fresh on each evaluation and never mutated afterwards.
type Alert struct {
	Kind      AlertKind
	Message   string
	Severity  Severity
	Timestamp time.Time
}

// AlertRecord is an alert as stored in the warehouse alerts table.
type AlertRecord struct {
	AlertID   string    // uuid
	AlertType string    // AlertKind for live alerts, upper-case codes for seed rows
	Message   string    // human readable
	Severity  string    // lower-case for live alerts, upper-case for seed rows
	Timestamp time.Time // evaluation time
	Resolved  bool      // only ever set by an operator
}

// Record converts a live alert into its warehouse row. The ID is left for the store.
func (a Alert) Record() *AlertRecord {
	return &AlertRecord{
		AlertType: string(a.Kind),
		Message:   a.Message,
		Severity:  string(a.Severity),
		Timestamp: a.Timestamp,
	}
}
