package analytics

import (
	"fmt"
	"math"
	"time"

	"FlowSentry/internal/domain/models"
)

// Risk component names.
const (
	RiskVolatility   = "market_volatility"
	RiskLiquidity    = "liquidity_risk"
	RiskCredit       = "credit_risk"
	RiskCurrency     = "currency_risk"
	RiskGeopolitical = "geopolitical_risk"
)

// subScorer maps one slice of the market state onto [0,100].
type subScorer struct {
	name  string
	score func(state models.MarketState) float64
}

// RiskScorer combines five independently-scored sub-risks into one weighted
// composite. Stateless: every call is a pure recomputation.
type RiskScorer struct {
	scorers []subScorer
	weights map[string]float64
	now     func() time.Time
}

// NewRiskScorer builds a scorer with the default weights
// (0.25/0.25/0.20/0.20/0.10). Custom weights must cover every component and
// sum to 1.0; a violation is a construction error, not a per-call one.
func NewRiskScorer(weights map[string]float64) (*RiskScorer, error) {
	if weights == nil {
		weights = map[string]float64{
			RiskVolatility:   0.25,
			RiskLiquidity:    0.25,
			RiskCredit:       0.20,
			RiskCurrency:     0.20,
			RiskGeopolitical: 0.10,
		}
	}
	scorers := defaultSubScorers()
	sum := 0.0
	for _, s := range scorers {
		w, ok := weights[s.name]
		if !ok {
			return nil, fmt.Errorf("risk scorer: missing weight for %q", s.name)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("risk scorer: weights sum to %.4f, want 1.0", sum)
	}
	return &RiskScorer{scorers: scorers, weights: weights, now: time.Now}, nil
}

// Score computes the weighted composite risk score and its categorical level.
func (r *RiskScorer) Score(state models.MarketState) models.RiskScore {
	components := make(map[string]float64, len(r.scorers))
	total := 0.0
	for _, s := range r.scorers {
		v := s.score(state)
		components[s.name] = v
		total += v * r.weights[s.name]
	}
	total = math.Round(total*100) / 100
	level := categorizeRisk(total)
	return models.RiskScore{
		Total:          total,
		Level:          level,
		Components:     components,
		Recommendation: riskRecommendations[level],
		Timestamp:      r.now(),
	}
}

func categorizeRisk(score float64) string {
	switch {
	case score > 80:
		return models.RiskExtreme
	case score > 60:
		return models.RiskHigh
	case score > 40:
		return models.RiskModerate
	case score > 20:
		return models.RiskLow
	default:
		return models.RiskMinimal
	}
}

var riskRecommendations = map[string]string{
	models.RiskExtreme:  "Maximum risk level. Defensive positioning mandatory, maximize cash, execute hedges immediately.",
	models.RiskHigh:     "High risk. Reduce positions, prepare for volatility, enforce strict stop-losses.",
	models.RiskModerate: "Moderate risk. Proceed carefully, keep diversification, step up market monitoring.",
	models.RiskLow:      "Low risk. Normal position management is fine; stay ready for opportunities.",
	models.RiskMinimal:  "Minimal risk. Aggressive strategies viable; lean into growth opportunities.",
}

func defaultSubScorers() []subScorer {
	return []subScorer{
		{name: RiskVolatility, score: scoreVolatility},
		{name: RiskLiquidity, score: scoreLiquidity},
		{name: RiskCredit, score: scoreCredit},
		{name: RiskCurrency, score: scoreCurrency},
		{name: RiskGeopolitical, score: scoreGeopolitical},
	}
}

// scoreVolatility: VIX bands, bumped when the 5-day VIX trend is sharp.
// VIX defaults to its long-run baseline of 15 when absent.
func scoreVolatility(state models.MarketState) float64 {
	vix := state.Float("vix", 15)
	var score float64
	switch {
	case vix < 15:
		score = 10
	case vix < 20:
		score = 25
	case vix < 30:
		score = 50
	case vix < 40:
		score = 75
	default:
		score = 95
	}
	if state.Float("vix_change_5d", 0) > 20 {
		score = math.Min(score+15, 100)
	}
	return score
}

// scoreLiquidity: base 20 plus additive bumps for spread widening, abnormal
// volume, and bond-market volatility (MOVE defaults to 80).
func scoreLiquidity(state models.MarketState) float64 {
	score := 20.0
	if state.Bool("spread_widening", false) {
		score += 25
	}
	volumeRatio := state.Float("volume_ratio", 1.0)
	if volumeRatio < 0.7 { // thin market
		score += 20
	} else if volumeRatio > 1.5 { // panic volume
		score += 15
	}
	move := state.Float("move_index", 80)
	if move > 150 {
		score += 30
	} else if move > 120 {
		score += 15
	}
	return math.Min(score, 100)
}

// scoreCredit: base 15 plus high-yield spread, investment-grade spread, and
// default-rate trend bumps.
func scoreCredit(state models.MarketState) float64 {
	score := 15.0
	hyg := state.Float("hyg_spread", 3.0)
	switch {
	case hyg > 7:
		score += 40
	case hyg > 5:
		score += 25
	case hyg > 4:
		score += 10
	}
	ig := state.Float("ig_spread", 1.0)
	if ig > 2 {
		score += 20
	} else if ig > 1.5 {
		score += 10
	}
	if state.Float("default_rate_change", 0) > 0.5 {
		score += 25
	}
	return math.Min(score, 100)
}

// scoreCurrency: base 20 plus dollar appreciation, EM currency stress, and
// rapid yen moves (carry unwind proxy).
func scoreCurrency(state models.MarketState) float64 {
	score := 20.0
	dxyChange := state.Float("dxy_change_1m", 0)
	if dxyChange > 5 {
		score += 30
	} else if dxyChange > 3 {
		score += 15
	}
	if state.Bool("em_fx_stress", false) {
		score += 25
	}
	if math.Abs(state.Float("usdjpy_change_1w", 0)) > 3 {
		score += 20
	}
	return math.Min(score, 100)
}

// scoreGeopolitical: base 30 with oil volatility and gold safe-haven bumps.
func scoreGeopolitical(state models.MarketState) float64 {
	score := 30.0
	if state.Float("oil_volatility", 0) > 5 {
		score += 25
	}
	if state.Float("gold_change_1m", 0) > 10 {
		score += 20
	}
	return math.Min(score, 100)
}
