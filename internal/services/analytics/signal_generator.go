package analytics

import (
	"fmt"
	"math"
	"time"

	"FlowSentry/internal/domain/models"
	"FlowSentry/pkg/logger"
)

// scenarioCondition is one named check against the market state. It reports
// whether it holds and, if so, the human-readable trigger line carrying the
// literal indicator value.
type scenarioCondition func(state models.MarketState) (bool, string)

// scenarioRule declares one scenario as data: its conditions in evaluation
// order, the minimum count to emit, and how severity/confidence/metadata
// derive from the count. One generic evaluator runs every rule.
type scenarioRule struct {
	scenario       string
	conditions     []scenarioCondition
	minConditions  int
	severity       func(met, total int) string
	confidence     func(met, total int) float64
	recommendation string
	metadata       func(state models.MarketState, met, total int) map[string]interface{}
}

// SignalGenerator evaluates every scenario rule independently against a
// snapshot; one call emits between zero and len(rules) signals.
type SignalGenerator struct {
	rules  []scenarioRule
	logger *logger.Logger
	now    func() time.Time
}

type GeneratorOption func(*SignalGenerator)

// WithGeneratorLogger attaches a structured logger.
func WithGeneratorLogger(l *logger.Logger) GeneratorOption {
	return func(g *SignalGenerator) { g.logger = l }
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *SignalGenerator) { g.now = now }
}

func NewSignalGenerator(opts ...GeneratorOption) *SignalGenerator {
	g := &SignalGenerator{
		rules: defaultScenarioRules(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate evaluates all rules against the snapshot. Missing indicators use
// each rule's documented neutral default; evaluation order inside a rule is
// fixed so the triggers list is stable.
func (g *SignalGenerator) Generate(state models.MarketState) []models.Signal {
	var signals []models.Signal
	for _, rule := range g.rules {
		met := 0
		var triggers []string
		for _, cond := range rule.conditions {
			ok, trigger := cond(state)
			if !ok {
				continue
			}
			met++
			triggers = append(triggers, trigger)
		}
		if met < rule.minConditions {
			continue
		}
		total := len(rule.conditions)
		sig := models.Signal{
			Scenario:       rule.scenario,
			Severity:       rule.severity(met, total),
			Confidence:     rule.confidence(met, total),
			Triggers:       triggers,
			Recommendation: rule.recommendation,
			Timestamp:      g.now(),
		}
		if rule.metadata != nil {
			sig.Metadata = rule.metadata(state, met, total)
		}
		signals = append(signals, sig)
	}
	if g.logger != nil {
		g.logger.Info("signals generated", logger.Int("count", len(signals)))
	}
	return signals
}

func fractionConfidence(met, total int) float64 {
	return math.Min(float64(met)/float64(total), 1.0)
}

func defaultScenarioRules() []scenarioRule {
	return []scenarioRule{
		{
			scenario: models.ScenarioKoreaOutflow,
			conditions: []scenarioCondition{
				func(s models.MarketState) (bool, string) {
					v := s.Float("korea_us_rate_diff", 0)
					return v < -0.5, fmt.Sprintf("Korea-US rate differential inverted: %.2f%%p", v)
				},
				func(s models.MarketState) (bool, string) {
					v := s.Float("usdkrw_change_1d", 0)
					return v > 1.0, fmt.Sprintf("USD/KRW surge: +%.2f%%", v)
				},
				func(s models.MarketState) (bool, string) {
					v := s.Float("ewy_flow_3d", 0)
					return v < 0, fmt.Sprintf("EWY ETF net outflow: %.0f", v)
				},
				func(s models.MarketState) (bool, string) {
					v := s.Float("kospi_foreign_flow", 0)
					return v < 0, fmt.Sprintf("KOSPI foreign net selling: %.0f", v)
				},
			},
			minConditions: 3,
			severity: func(met, total int) string {
				if met == total {
					return models.SignalCritical
				}
				return models.SignalWarning
			},
			confidence:     fractionConfidence,
			recommendation: "Reduce positions or consider hedging. Prepare for KRW weakness.",
			metadata: func(_ models.MarketState, met, total int) map[string]interface{} {
				return map[string]interface{}{
					"conditions_met":   met,
					"total_conditions": total,
				}
			},
		},
		{
			scenario: models.ScenarioRiskOff,
			conditions: []scenarioCondition{
				func(s models.MarketState) (bool, string) {
					v := s.Float("vix", 0)
					return v > 30, fmt.Sprintf("VIX spike: %.1f", v)
				},
				func(s models.MarketState) (bool, string) {
					v := s.Float("tlt_flow", 0)
					return v > 0, fmt.Sprintf("Heavy TLT inflow: +%.0f", v)
				},
				func(s models.MarketState) (bool, string) {
					v := s.Float("hyg_spread", 0)
					return v > 5.0, fmt.Sprintf("High-yield spread widening: %.2f%%p", v)
				},
				func(s models.MarketState) (bool, string) {
					gold := s.Float("gold_change", 0)
					dxy := s.Float("dxy_change", 0)
					return gold > 1 && dxy > 0.5, "Gold rally and dollar strength at the same time"
				},
			},
			minConditions: 3,
			severity: func(int, int) string {
				return models.SignalCritical
			},
			confidence:     fractionConfidence,
			recommendation: "Cut equity exposure, raise cash and short-duration bonds. Wait until volatility subsides.",
			metadata: func(_ models.MarketState, met, _ int) map[string]interface{} {
				return map[string]interface{}{"conditions_met": met}
			},
		},
		{
			scenario: models.ScenarioLiquidityCrisis,
			conditions: []scenarioCondition{
				func(s models.MarketState) (bool, string) {
					v := s.Float("libor_ois_spread", 0)
					return v > 0.5, fmt.Sprintf("LIBOR-OIS spread surge: %.2f%%p", v)
				},
				func(s models.MarketState) (bool, string) {
					return s.Bool("repo_rate_spike", false), "Repo rate spike detected"
				},
				func(s models.MarketState) (bool, string) {
					v := s.Float("move_index", 0)
					return v > 150, fmt.Sprintf("MOVE index surge: %.1f", v)
				},
				func(s models.MarketState) (bool, string) {
					v := s.Float("corp_bond_issuance_change", 0)
					return v < -50, fmt.Sprintf("Corporate bond issuance collapse: %.1f%%", v)
				},
			},
			minConditions: 2,
			severity: func(int, int) string {
				return models.SignalEmergency
			},
			confidence:     fractionConfidence,
			recommendation: "Extremely defensive positioning required. Cash preservation first. Pattern resembles 2008.",
			metadata: func(_ models.MarketState, met, total int) map[string]interface{} {
				level := "moderate"
				if met >= 3 {
					level = "severe"
				}
				return map[string]interface{}{
					"conditions_met": met,
					"crisis_level":   level,
				}
			},
		},
		{
			scenario: models.ScenarioVolatilitySpike,
			conditions: []scenarioCondition{
				func(s models.MarketState) (bool, string) {
					change := s.Float("vix_change_1d", 0)
					vix := s.Float("vix", 0)
					return change > 20, fmt.Sprintf("VIX spike: +%.1f%% (now: %.1f)", change, vix)
				},
			},
			minConditions: 1,
			severity: func(int, int) string {
				return models.SignalWarning
			},
			confidence: func(int, int) float64 {
				return 0.8
			},
			recommendation: "Short-term volatility rising. Consider reducing position sizes.",
			metadata: func(s models.MarketState, _, _ int) map[string]interface{} {
				return map[string]interface{}{
					"vix":        s.Float("vix", 0),
					"vix_change": s.Float("vix_change_1d", 0),
				}
			},
		},
	}
}
