package models

import "time"

// Observation is one timestamped numeric reading for a symbol, as produced by
// the collectors. Immutable once created.
type Observation struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Value     float64
	Volume    float64
	Bid       float64
	Ask       float64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Metadata  map[string]string
}

// Time returns the observation timestamp as time.Time.
func (o *Observation) Time() time.Time { return time.Unix(o.Timestamp, 0) }

// ProcessedSignal is the tick-level anomaly verdict emitted by the stream
// processor when a fresh value deviates from its rolling window.
type ProcessedSignal struct {
	Symbol       string
	Timestamp    time.Time
	Value        float64
	ZScore       float64
	AnomalyScore float64
	SignalType   string // "normal", "warning", "critical"
	Metadata     map[string]float64
}

// WindowStats is a snapshot of a symbol's rolling window statistics.
type WindowStats struct {
	Symbol    string  `json:"symbol"`
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Current   float64 `json:"current"`
	ChangePct float64 `json:"change_pct"`
}
