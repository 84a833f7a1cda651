package analytics

import (
	"math"
	"testing"

	"FlowSentry/internal/domain/models"
)

func TestNewRiskScorerDefaults(t *testing.T) {
	r, err := NewRiskScorer(nil)
	if err != nil {
		t.Fatalf("default weights must construct: %v", err)
	}
	if r == nil {
		t.Fatalf("expected scorer")
	}
}

func TestNewRiskScorerMissingComponent(t *testing.T) {
	_, err := NewRiskScorer(map[string]float64{
		RiskVolatility: 0.5,
		RiskLiquidity:  0.5,
	})
	if err == nil {
		t.Fatalf("expected error for missing components")
	}
}

func TestNewRiskScorerBadSum(t *testing.T) {
	_, err := NewRiskScorer(map[string]float64{
		RiskVolatility:   0.3,
		RiskLiquidity:    0.3,
		RiskCredit:       0.3,
		RiskCurrency:     0.3,
		RiskGeopolitical: 0.3,
	})
	if err == nil {
		t.Fatalf("expected error for weights summing to 1.5")
	}
}

func TestScoreNeutralState(t *testing.T) {
	r, err := NewRiskScorer(nil)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	score := r.Score(models.MarketState{})
	// all defaults: 25*0.25 + 20*0.25 + 15*0.20 + 20*0.20 + 30*0.10
	if math.Abs(score.Total-21.25) > 1e-9 {
		t.Fatalf("expected total 21.25, got %v", score.Total)
	}
	if score.Level != models.RiskLow {
		t.Fatalf("expected LOW, got %q", score.Level)
	}
	if len(score.Components) != 5 {
		t.Fatalf("expected 5 components, got %d", len(score.Components))
	}
	if score.Recommendation == "" {
		t.Fatalf("expected a recommendation")
	}
	if score.Timestamp.IsZero() {
		t.Fatalf("expected a timestamp")
	}
}

func TestScoreStressedState(t *testing.T) {
	r, err := NewRiskScorer(nil)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	score := r.Score(models.MarketState{
		"vix":                 45.0,
		"vix_change_5d":       25.0,
		"spread_widening":     true,
		"volume_ratio":        2.0,
		"move_index":          160.0,
		"hyg_spread":          8.0,
		"ig_spread":           2.5,
		"default_rate_change": 0.6,
		"dxy_change_1m":       6.0,
		"em_fx_stress":        true,
		"usdjpy_change_1w":    4.0,
		"oil_volatility":      6.0,
		"gold_change_1m":      12.0,
	})
	if score.Level != models.RiskExtreme {
		t.Fatalf("expected EXTREME under full stress, got %q (total %v)", score.Level, score.Total)
	}
	if score.Components[RiskVolatility] != 100 {
		t.Fatalf("expected saturated volatility component, got %v", score.Components[RiskVolatility])
	}
	if score.Components[RiskCredit] != 100 {
		t.Fatalf("expected saturated credit component, got %v", score.Components[RiskCredit])
	}
}

func TestScoreMonotoneInVix(t *testing.T) {
	r, err := NewRiskScorer(nil)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	calm := r.Score(models.MarketState{"vix": 12.0})
	stressed := r.Score(models.MarketState{"vix": 38.0})
	if calm.Total >= stressed.Total {
		t.Fatalf("higher vix must score higher: calm %v stressed %v", calm.Total, stressed.Total)
	}
}

func TestCategorizeRiskBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		level string
	}{
		{10, models.RiskMinimal},
		{20, models.RiskMinimal},
		{20.5, models.RiskLow},
		{40.5, models.RiskModerate},
		{60.5, models.RiskHigh},
		{80.5, models.RiskExtreme},
	}
	for _, tc := range cases {
		if got := categorizeRisk(tc.score); got != tc.level {
			t.Fatalf("categorizeRisk(%v) = %q, want %q", tc.score, got, tc.level)
		}
	}
}
