package models

import "time"

// AlertSeverity is the 4-level uppercase alert vocabulary. It is distinct from
// Signal severity; SeverityFromSignal is the single mapping between the two.
type AlertSeverity int

const (
	AlertInfo AlertSeverity = iota + 1
	AlertWarning
	AlertCritical
	AlertEmergency
)

func (s AlertSeverity) String() string {
	switch s {
	case AlertInfo:
		return "INFO"
	case AlertWarning:
		return "WARNING"
	case AlertCritical:
		return "CRITICAL"
	case AlertEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// ParseAlertSeverity converts an uppercase severity name back to the enum.
func ParseAlertSeverity(s string) (AlertSeverity, bool) {
	switch s {
	case "INFO":
		return AlertInfo, true
	case "WARNING":
		return AlertWarning, true
	case "CRITICAL":
		return AlertCritical, true
	case "EMERGENCY":
		return AlertEmergency, true
	default:
		return 0, false
	}
}

// SeverityFromSignal maps a Signal's lowercase severity to AlertSeverity,
// escalating one level when confidence exceeds 0.9 and the mapped level is
// below EMERGENCY. Unknown severities map to INFO.
func SeverityFromSignal(severity string, confidence float64) AlertSeverity {
	var sev AlertSeverity
	switch severity {
	case SignalInfo:
		sev = AlertInfo
	case SignalWarning:
		sev = AlertWarning
	case SignalCritical:
		sev = AlertCritical
	case SignalEmergency:
		sev = AlertEmergency
	default:
		sev = AlertInfo
	}
	if confidence > 0.9 && sev < AlertEmergency {
		sev++
	}
	return sev
}

// Alert is a dispatched, recorded alert built from exactly one qualifying
// Signal. Notification channels receive a read-only copy; the engine owns the
// history list.
type Alert struct {
	ID             string                 `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	Severity       AlertSeverity          `json:"-"`
	SeverityName   string                 `json:"severity"`
	Scenario       string                 `json:"scenario"`
	Confidence     float64                `json:"confidence"`
	Message        string                 `json:"message"`
	Triggers       []string               `json:"triggers"`
	Recommendation string                 `json:"recommendation"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
