package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"FlowSentry/internal/domain/models"
	domrepo "FlowSentry/internal/domain/repository"
	domsvc "FlowSentry/internal/domain/service"
	pmetrics "FlowSentry/internal/service/metrics"
	"FlowSentry/internal/services/alerts"
	"FlowSentry/internal/services/analytics"
	"FlowSentry/internal/services/features"
	"FlowSentry/pkg/cache"
	"FlowSentry/pkg/logger"
)

// IndicatorSpec maps one market-state key to a stored symbol. Mode "level"
// takes the latest value; "change_1d" takes the percent change over the
// lookback window; "flow" sums volume over the window.
type IndicatorSpec struct {
	Key      string
	Symbol   string
	Mode     string
	Lookback time.Duration
}

const (
	riskCacheKey = "risk:latest"
	riskCacheTTL = 5 * time.Minute

	// riskModelType tags stored composite-risk predictions; the scorer is an
	// ensemble of independent sub-scorers.
	riskModelType = "ensemble"
)

// EvaluationUseCase builds a market-state snapshot, evaluates scenario rules
// and composite risk against it, and routes the outcome through the alert
// engine and storage.
type EvaluationUseCase struct {
	storage    domrepo.Storage
	cache      cache.Service
	generator  domsvc.SignalGenerator
	scorer     domsvc.RiskScorer
	engine     *alerts.Engine
	detector   *analytics.AnomalyDetector
	metrics    domrepo.Metrics
	logger     *logger.Logger
	indicators []IndicatorSpec

	// featureSymbol, when set, enriches the snapshot with technical features
	// (RSI, MACD, Bollinger and friends) computed from that symbol's closes.
	featureSymbol   string
	featureLookback time.Duration

	timeout time.Duration
	now     func() time.Time
}

type EvaluationOption func(*EvaluationUseCase)

// WithIndicators sets the snapshot composition.
func WithIndicators(specs []IndicatorSpec) EvaluationOption {
	return func(uc *EvaluationUseCase) { uc.indicators = specs }
}

// WithFeatureSymbol enables technical-feature enrichment from the given
// symbol's close series. Lookback <= 0 falls back to 30 days.
func WithFeatureSymbol(symbol string, lookback time.Duration) EvaluationOption {
	return func(uc *EvaluationUseCase) {
		uc.featureSymbol = symbol
		uc.featureLookback = lookback
	}
}

// WithEvaluationLogger attaches a structured logger.
func WithEvaluationLogger(l *logger.Logger) EvaluationOption {
	return func(uc *EvaluationUseCase) { uc.logger = l }
}

// WithEvaluationClock overrides the timestamp source (tests).
func WithEvaluationClock(now func() time.Time) EvaluationOption {
	return func(uc *EvaluationUseCase) { uc.now = now }
}

func NewEvaluationUseCase(
	storage domrepo.Storage,
	c cache.Service,
	generator domsvc.SignalGenerator,
	scorer domsvc.RiskScorer,
	engine *alerts.Engine,
	detector *analytics.AnomalyDetector,
	metrics domrepo.Metrics,
	opts ...EvaluationOption,
) *EvaluationUseCase {
	pmetrics.Register()
	uc := &EvaluationUseCase{
		storage:   storage,
		cache:     c,
		generator: generator,
		scorer:    scorer,
		engine:    engine,
		detector:  detector,
		metrics:   metrics,
		timeout:   10 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// EvaluationResult is one full evaluation cycle's outcome.
type EvaluationResult struct {
	State     models.MarketState `json:"state"`
	Signals   []models.Signal    `json:"signals"`
	Risk      models.RiskScore   `json:"risk"`
	Alerts    []*models.Alert    `json:"alerts"`
	Timestamp time.Time          `json:"timestamp"`
	Errors    map[string]string  `json:"errors,omitempty"`
}

// Evaluate runs one cycle: snapshot, scenario signals, composite risk, alert
// dispatch, persistence. Indicator fetch failures degrade to defaults rather
// than failing the cycle.
func (uc *EvaluationUseCase) Evaluate(ctx context.Context) (*EvaluationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := uc.now()
	state, errs := uc.BuildSnapshot(ctx)

	signals := uc.generator.Generate(state)
	for i := range signals {
		pmetrics.SignalsEmitted.WithLabelValues(signals[i].Scenario, signals[i].Severity).Inc()
	}
	risk := uc.scorer.Score(state)
	dispatched := uc.engine.EvaluateAlerts(ctx, signals)

	for i := range signals {
		if err := uc.storage.StoreSignal(ctx, &signals[i], true); err != nil {
			uc.metrics.RecordError("store_signal")
			if uc.logger != nil {
				uc.logger.Error("store signal", logger.Error(err))
			}
		}
	}
	for _, a := range dispatched {
		if err := uc.storage.StoreAlert(ctx, a); err != nil {
			uc.metrics.RecordError("store_alert")
			if uc.logger != nil {
				uc.logger.Error("store alert", logger.Error(err))
			}
		}
	}

	uc.persistPrediction(ctx, risk)

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, riskCacheKey, risk, riskCacheTTL); err != nil && uc.logger != nil {
			uc.logger.Warn("cache risk score", logger.Error(err))
		}
	}

	uc.metrics.RecordLatency("evaluation_cycle", time.Since(start).Seconds())
	if uc.logger != nil {
		uc.logger.Info("evaluation cycle",
			logger.Int("signals", len(signals)),
			logger.Int("alerts", len(dispatched)),
			logger.Any("risk_total", risk.Total),
			logger.String("risk_level", risk.Level))
	}

	return &EvaluationResult{
		State:     state,
		Signals:   signals,
		Risk:      risk,
		Alerts:    dispatched,
		Timestamp: start,
		Errors:    errs,
	}, nil
}

// BuildSnapshot fetches every configured indicator concurrently and folds
// the results into one MarketState. A failed indicator is reported in the
// returned map and simply absent from the state.
func (uc *EvaluationUseCase) BuildSnapshot(ctx context.Context) (models.MarketState, map[string]string) {
	state := models.MarketState{}
	errs := map[string]string{}

	if len(uc.indicators) > 0 {
		type item struct {
			key string
			val float64
			err error
		}
		ch := make(chan item, len(uc.indicators))
		var wg sync.WaitGroup

		for _, spec := range uc.indicators {
			wg.Add(1)
			go func(spec IndicatorSpec) {
				defer wg.Done()
				v, err := uc.fetchIndicator(ctx, spec)
				ch <- item{spec.Key, v, err}
			}(spec)
		}
		go func() { wg.Wait(); close(ch) }()

		for it := range ch {
			if it.err != nil {
				errs[it.key] = it.err.Error()
				continue
			}
			state[it.key] = it.val
		}
	}

	if uc.featureSymbol != "" {
		feats, err := uc.fetchFeatures(ctx)
		if err != nil {
			errs["features"] = err.Error()
		} else {
			// configured indicators win over derived features on key clash
			for k, v := range feats {
				if _, ok := state[k]; !ok {
					state[k] = v
				}
			}
		}
	}

	if len(errs) == 0 {
		errs = nil
	}
	return state, errs
}

// fetchFeatures computes technical indicators from the feature symbol's close
// series, oldest first.
func (uc *EvaluationUseCase) fetchFeatures(ctx context.Context) (map[string]float64, error) {
	lookback := uc.featureLookback
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}
	to := uc.now()
	obs, err := uc.storage.QueryObservations(ctx, uc.featureSymbol, to.Add(-lookback), to, 500)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", uc.featureSymbol, err)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("no observations for %s", uc.featureSymbol)
	}
	closes := make([]float64, 0, len(obs))
	for i := len(obs) - 1; i >= 0; i-- { // newest first in storage
		closes = append(closes, obs[i].Value)
	}
	return features.Extract(closes), nil
}

func (uc *EvaluationUseCase) fetchIndicator(ctx context.Context, spec IndicatorSpec) (float64, error) {
	lookback := spec.Lookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	to := uc.now()
	from := to.Add(-lookback)

	obs, err := uc.storage.QueryObservations(ctx, spec.Symbol, from, to, 500)
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", spec.Symbol, err)
	}
	if len(obs) == 0 {
		return 0, fmt.Errorf("no observations for %s", spec.Symbol)
	}
	// rows are returned newest first
	latest := obs[0]
	oldest := obs[len(obs)-1]

	switch spec.Mode {
	case "change_1d":
		if oldest.Value == 0 {
			return 0, fmt.Errorf("zero base value for %s", spec.Symbol)
		}
		return (latest.Value - oldest.Value) / oldest.Value * 100, nil
	case "flow":
		var sum float64
		for _, o := range obs {
			sum += o.Volume
		}
		return sum, nil
	default: // level
		return latest.Value, nil
	}
}

// persistPrediction records the composite outcome with a direction relative
// to the previously stored cycle.
func (uc *EvaluationUseCase) persistPrediction(ctx context.Context, risk models.RiskScore) {
	direction := "stable"
	if prev, err := uc.storage.LatestPrediction(ctx, riskModelType); err == nil && prev != nil {
		if prevTotal, ok := prev.Metadata["total"].(float64); ok {
			switch {
			case risk.Total > prevTotal+1:
				direction = "deteriorating"
			case risk.Total < prevTotal-1:
				direction = "improving"
			}
		}
	}
	p := &models.Prediction{
		ID:         uuid.NewString(),
		ModelType:  riskModelType,
		Direction:  direction,
		Confidence: risk.Total / 100,
		CreatedAt:  uc.now().Unix(),
		Metadata:   map[string]interface{}{"total": risk.Total, "level": risk.Level},
	}
	if err := uc.storage.SavePrediction(ctx, p); err != nil {
		uc.metrics.RecordError("save_prediction")
		if uc.logger != nil {
			uc.logger.Error("save prediction", logger.Error(err))
		}
	}
}

// ActiveSignals returns stored signals still flagged active, optionally
// filtered by severity.
func (uc *EvaluationUseCase) ActiveSignals(ctx context.Context, severity string, limit int) ([]*models.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	return uc.storage.ActiveSignals(ctx, severity, limit)
}

// Observations returns stored observations for a symbol over the lookback
// window, newest first.
func (uc *EvaluationUseCase) Observations(ctx context.Context, symbol string, lookback time.Duration, limit int) ([]*models.Observation, error) {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	to := uc.now()
	return uc.ObservationsRange(ctx, symbol, to.Add(-lookback), to, limit)
}

// ObservationsRange returns stored observations for an explicit time range,
// newest first.
func (uc *EvaluationUseCase) ObservationsRange(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Observation, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("invalid range: from %s is not before to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if limit <= 0 {
		limit = 500
	}
	return uc.storage.QueryObservations(ctx, symbol, from, to, limit)
}

// RiskNow returns the cached composite risk score when fresh, otherwise
// recomputes it from a new snapshot without dispatching alerts.
func (uc *EvaluationUseCase) RiskNow(ctx context.Context) (models.RiskScore, error) {
	if uc.cache != nil {
		var cached models.RiskScore
		if err := uc.cache.Get(ctx, riskCacheKey, &cached); err == nil && !cached.Timestamp.IsZero() {
			return cached, nil
		}
	}
	state, _ := uc.BuildSnapshot(ctx)
	risk := uc.scorer.Score(state)
	if uc.cache != nil {
		_ = uc.cache.Set(ctx, riskCacheKey, risk, riskCacheTTL)
	}
	return risk, nil
}

// ScanAnomalies runs batch anomaly detection over stored observations for
// the given symbols, fusing results across symbols by descending score.
func (uc *EvaluationUseCase) ScanAnomalies(ctx context.Context, symbols []string, lookback time.Duration, limit int) ([]models.Anomaly, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols required")
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	to := uc.now()
	from := to.Add(-lookback)

	var all []models.Anomaly
	for _, symbol := range symbols {
		obs, err := uc.storage.QueryObservations(ctx, symbol, from, to, 5000)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", symbol, err)
		}
		if len(obs) == 0 {
			continue
		}
		// rows come back newest first; the frame wants oldest first
		frame := analytics.NewFrame(len(obs))
		for i := len(obs) - 1; i >= 0; i-- {
			o := obs[i]
			frame.AddRow(o.Time(), map[string]float64{
				symbol:   o.Value,
				"volume": o.Volume,
			})
		}
		found := uc.detector.Detect(frame)
		for i := range found {
			pmetrics.AnomaliesDetected.WithLabelValues(found[i].Method, found[i].Severity).Inc()
		}
		all = append(all, found...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
