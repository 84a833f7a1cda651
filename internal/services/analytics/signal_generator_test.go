package analytics

import (
	"strings"
	"testing"
	"time"

	"FlowSentry/internal/domain/models"
)

func fixedClock() func() time.Time {
	ts := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestGenerateEmptyState(t *testing.T) {
	g := NewSignalGenerator(WithClock(fixedClock()))
	if signals := g.Generate(models.MarketState{}); len(signals) != 0 {
		t.Fatalf("expected no signals on neutral state, got %d", len(signals))
	}
}

func TestGenerateRiskOffAllConditions(t *testing.T) {
	g := NewSignalGenerator(WithClock(fixedClock()))
	state := models.MarketState{
		"vix":         32.0,
		"tlt_flow":    1_000_000.0,
		"hyg_spread":  6.0,
		"gold_change": 1.5,
		"dxy_change":  0.8,
	}

	signals := g.Generate(state)
	if len(signals) != 1 {
		t.Fatalf("expected exactly one signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Scenario != models.ScenarioRiskOff {
		t.Fatalf("unexpected scenario %q", sig.Scenario)
	}
	if sig.Severity != models.SignalCritical {
		t.Fatalf("expected critical, got %q", sig.Severity)
	}
	if sig.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", sig.Confidence)
	}
	if len(sig.Triggers) != 4 {
		t.Fatalf("expected 4 triggers, got %d", len(sig.Triggers))
	}
	if !strings.Contains(sig.Triggers[0], "32.0") {
		t.Fatalf("trigger should embed the literal VIX value: %q", sig.Triggers[0])
	}
	if sig.Metadata["conditions_met"] != 4 {
		t.Fatalf("unexpected metadata %v", sig.Metadata)
	}
}

func TestGenerateRiskOffBelowMinimum(t *testing.T) {
	g := NewSignalGenerator(WithClock(fixedClock()))
	// only two of four conditions hold
	state := models.MarketState{
		"vix":      35.0,
		"tlt_flow": 500_000.0,
	}
	if signals := g.Generate(state); len(signals) != 0 {
		t.Fatalf("two conditions must not emit, got %d signals", len(signals))
	}
}

func TestGenerateLiquidityCrisis(t *testing.T) {
	g := NewSignalGenerator(WithClock(fixedClock()))
	state := models.MarketState{
		"libor_ois_spread": 0.6,
		"move_index":       160.0,
	}

	signals := g.Generate(state)
	if len(signals) != 1 {
		t.Fatalf("expected one signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Scenario != models.ScenarioLiquidityCrisis {
		t.Fatalf("unexpected scenario %q", sig.Scenario)
	}
	if sig.Severity != models.SignalEmergency {
		t.Fatalf("liquidity crisis is always emergency, got %q", sig.Severity)
	}
	if sig.Confidence != 0.5 {
		t.Fatalf("expected confidence 0.5, got %v", sig.Confidence)
	}
	if sig.Metadata["crisis_level"] != "moderate" {
		t.Fatalf("expected moderate crisis level, got %v", sig.Metadata["crisis_level"])
	}
}

func TestGenerateLiquidityCrisisSevere(t *testing.T) {
	g := NewSignalGenerator(WithClock(fixedClock()))
	state := models.MarketState{
		"libor_ois_spread": 0.6,
		"move_index":       160.0,
		"repo_rate_spike":  true,
	}

	signals := g.Generate(state)
	if len(signals) != 1 {
		t.Fatalf("expected one signal, got %d", len(signals))
	}
	if signals[0].Metadata["crisis_level"] != "severe" {
		t.Fatalf("three conditions should be severe, got %v", signals[0].Metadata["crisis_level"])
	}
}

func TestGenerateVolatilitySpike(t *testing.T) {
	g := NewSignalGenerator(WithClock(fixedClock()))
	state := models.MarketState{
		"vix_change_1d": 25.0,
		"vix":           28.0,
	}

	signals := g.Generate(state)
	if len(signals) != 1 {
		t.Fatalf("expected one signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Scenario != models.ScenarioVolatilitySpike {
		t.Fatalf("unexpected scenario %q", sig.Scenario)
	}
	if sig.Severity != models.SignalWarning {
		t.Fatalf("expected warning, got %q", sig.Severity)
	}
	if sig.Confidence != 0.8 {
		t.Fatalf("expected fixed confidence 0.8, got %v", sig.Confidence)
	}
	if sig.Metadata["vix"] != 28.0 {
		t.Fatalf("metadata should carry current vix, got %v", sig.Metadata["vix"])
	}
}

func TestGenerateKoreaOutflowPartial(t *testing.T) {
	g := NewSignalGenerator(WithClock(fixedClock()))
	state := models.MarketState{
		"korea_us_rate_diff": -0.8,
		"usdkrw_change_1d":   1.5,
		"ewy_flow_3d":        -200_000.0,
	}

	signals := g.Generate(state)
	if len(signals) != 1 {
		t.Fatalf("expected one signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Scenario != models.ScenarioKoreaOutflow {
		t.Fatalf("unexpected scenario %q", sig.Scenario)
	}
	// 3 of 4 conditions: warning, not critical
	if sig.Severity != models.SignalWarning {
		t.Fatalf("expected warning for partial match, got %q", sig.Severity)
	}
	if sig.Confidence != 0.75 {
		t.Fatalf("expected confidence 0.75, got %v", sig.Confidence)
	}
}

func TestGenerateMultipleScenarios(t *testing.T) {
	g := NewSignalGenerator(WithClock(fixedClock()))
	state := models.MarketState{
		"vix":           34.0,
		"vix_change_1d": 30.0,
		"tlt_flow":      2_000_000.0,
		"hyg_spread":    6.5,
		"gold_change":   2.0,
		"dxy_change":    1.0,
	}

	signals := g.Generate(state)
	if len(signals) != 2 {
		t.Fatalf("expected risk-off and volatility spike, got %d signals", len(signals))
	}
	scenarios := map[string]bool{}
	for _, s := range signals {
		scenarios[s.Scenario] = true
	}
	if !scenarios[models.ScenarioRiskOff] || !scenarios[models.ScenarioVolatilitySpike] {
		t.Fatalf("unexpected scenario set %v", scenarios)
	}
}
