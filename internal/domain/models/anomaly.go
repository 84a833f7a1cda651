package models

// Anomaly detection methods.
const (
	MethodStatistical = "statistical"
	MethodML          = "ml"
	MethodPattern     = "pattern"
)

// Anomaly severities, ordered low to critical.
const (
	AnomalyLow      = "low"
	AnomalyMedium   = "medium"
	AnomalyHigh     = "high"
	AnomalyCritical = "critical"
)

// Anomaly is one detection result from the batch anomaly detector.
// The ranked list is rebuilt per detection call; an Anomaly carries no
// identity across calls and is never mutated.
type Anomaly struct {
	Symbol    string             `json:"symbol"`
	Timestamp string             `json:"timestamp"`
	Method    string             `json:"method"` // statistical | ml | pattern
	Severity  string             `json:"severity"`
	Score     float64            `json:"score"` // 0-100
	Details   map[string]float64 `json:"details,omitempty"`
}
