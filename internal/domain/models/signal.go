package models

import "time"

// Signal severities (lowercase vocabulary, distinct from AlertSeverity).
const (
	SignalInfo      = "info"
	SignalWarning   = "warning"
	SignalCritical  = "critical"
	SignalEmergency = "emergency"
)

// Scenario names emitted by the signal generator.
const (
	ScenarioKoreaOutflow    = "korea_capital_outflow"
	ScenarioRiskOff         = "risk_off_transition"
	ScenarioLiquidityCrisis = "liquidity_crisis"
	ScenarioVolatilitySpike = "volatility_spike"
)

// Signal is one scenario's evaluation outcome at one point in time.
// Stateless: no identity persists between evaluations.
type Signal struct {
	Scenario       string                 `json:"scenario"`
	Severity       string                 `json:"severity"`   // info|warning|critical|emergency
	Confidence     float64                `json:"confidence"` // 0-1
	Triggers       []string               `json:"triggers"`
	Recommendation string                 `json:"recommendation"`
	Timestamp      time.Time              `json:"timestamp"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
