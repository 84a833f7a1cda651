package models

import "time"

// Risk levels ordered from calmest to most severe.
const (
	RiskMinimal  = "MINIMAL"
	RiskLow      = "LOW"
	RiskModerate = "MODERATE"
	RiskHigh     = "HIGH"
	RiskExtreme  = "EXTREME"
)

// RiskScore is one composite risk assessment, recomputed fully on each call
// from a market-state snapshot. No incremental update.
type RiskScore struct {
	Total          float64            `json:"total_risk_score"` // 0-100
	Level          string             `json:"risk_level"`
	Components     map[string]float64 `json:"components"`
	Recommendation string             `json:"recommendation"`
	Timestamp      time.Time          `json:"timestamp"`
}
