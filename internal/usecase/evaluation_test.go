package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FlowSentry/internal/domain/models"
	"FlowSentry/internal/services/alerts"
	"FlowSentry/internal/services/analytics"
	"FlowSentry/pkg/cache"
)

type fakeStorage struct {
	mu           sync.Mutex
	observations map[string][]*models.Observation // newest first
	queryErr     map[string]error
	signals      []*models.Signal
	alerts       []*models.Alert
	predictions  []*models.Prediction
	cleanupAt    time.Time
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		observations: map[string][]*models.Observation{},
		queryErr:     map[string]error{},
	}
}

func (f *fakeStorage) Init(ctx context.Context) error { return nil }

func (f *fakeStorage) StoreObservation(ctx context.Context, o *models.Observation) error {
	return nil
}

func (f *fakeStorage) StoreObservationBatch(ctx context.Context, obs []*models.Observation) error {
	return nil
}

func (f *fakeStorage) QueryObservations(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.queryErr[symbol]; err != nil {
		return nil, err
	}
	obs := f.observations[symbol]
	if limit > 0 && len(obs) > limit {
		obs = obs[:limit]
	}
	return obs, nil
}

func (f *fakeStorage) StoreSignal(ctx context.Context, s *models.Signal, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, s)
	return nil
}

func (f *fakeStorage) ActiveSignals(ctx context.Context, severity string, limit int) ([]*models.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signals, nil
}

func (f *fakeStorage) StoreAlert(ctx context.Context, a *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeStorage) SavePrediction(ctx context.Context, p *models.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.predictions = append(f.predictions, p)
	return nil
}

func (f *fakeStorage) LatestPrediction(ctx context.Context, modelType string) (*models.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.predictions) - 1; i >= 0; i-- {
		if f.predictions[i].ModelType == modelType {
			return f.predictions[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStorage) Cleanup(ctx context.Context, olderThan time.Time) (map[string]int, error) {
	f.mu.Lock()
	f.cleanupAt = olderThan
	f.mu.Unlock()
	return map[string]int{}, nil
}

func (f *fakeStorage) Health(ctx context.Context) error { return nil }
func (f *fakeStorage) Close() error                     { return nil }

// seedObservations stores n observations for symbol, newest first, one minute
// apart, valued by val(i) where i=0 is the oldest.
func (f *fakeStorage) seedObservations(symbol string, n int, val func(i int) float64, vol func(i int) float64) {
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	obs := make([]*models.Observation, 0, n)
	for i := n - 1; i >= 0; i-- {
		o := &models.Observation{
			Symbol:    symbol,
			Timestamp: base.Add(time.Duration(i) * time.Minute).Unix(),
			Value:     val(i),
		}
		if vol != nil {
			o.Volume = vol(i)
		}
		obs = append(obs, o)
	}
	f.observations[symbol] = obs
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: map[string]int{}} }

func (f *fakeMetrics) RecordMessageSent(backend, symbol string)     {}
func (f *fakeMetrics) RecordLastValue(symbol string, value float64) {}
func (f *fakeMetrics) RecordLatency(op string, seconds float64)     {}
func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	f.errors[kind]++
	f.mu.Unlock()
}

type fakeGenerator struct {
	signals []models.Signal
}

func (f *fakeGenerator) Generate(state models.MarketState) []models.Signal {
	return f.signals
}

type fakeScorer struct {
	calls int
	score models.RiskScore
}

func (f *fakeScorer) Score(state models.MarketState) models.RiskScore {
	f.calls++
	return f.score
}

func quietEngine() *alerts.Engine {
	return alerts.NewEngine(alerts.WithConfig(alerts.Config{
		CooldownPeriod:   0,
		MaxAlertsPerHour: 0,
	}))
}

func newTestUseCase(store *fakeStorage, gen *fakeGenerator, scorer *fakeScorer, opts ...EvaluationOption) *EvaluationUseCase {
	base := []EvaluationOption{WithEvaluationClock(func() time.Time {
		return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	})}
	return NewEvaluationUseCase(
		store,
		cache.NewMemoryCache(),
		gen,
		scorer,
		quietEngine(),
		analytics.NewAnomalyDetector(),
		newFakeMetrics(),
		append(base, opts...)...,
	)
}

func TestBuildSnapshotModes(t *testing.T) {
	store := newFakeStorage()
	store.seedObservations("VIX", 5, func(i int) float64 { return 20 + float64(i) }, nil) // latest 24
	store.seedObservations("GLD", 5, func(i int) float64 { return 100 + float64(i) }, nil)
	store.seedObservations("TLT", 4, func(i int) float64 { return 90 }, func(i int) float64 { return 1000 })

	uc := newTestUseCase(store, &fakeGenerator{}, &fakeScorer{}, WithIndicators([]IndicatorSpec{
		{Key: "vix", Symbol: "VIX", Mode: "level"},
		{Key: "gold_change", Symbol: "GLD", Mode: "change_1d"},
		{Key: "tlt_flow", Symbol: "TLT", Mode: "flow"},
	}))

	state, errs := uc.BuildSnapshot(context.Background())
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got := state.Float("vix", 0); got != 24 {
		t.Fatalf("level mode = %v, want latest value 24", got)
	}
	if got := state.Float("gold_change", 0); got != 4 {
		t.Fatalf("change_1d mode = %v, want (104-100)/100*100 = 4", got)
	}
	if got := state.Float("tlt_flow", 0); got != 4000 {
		t.Fatalf("flow mode = %v, want summed volume 4000", got)
	}
}

func TestBuildSnapshotDegradedIndicator(t *testing.T) {
	store := newFakeStorage()
	store.seedObservations("VIX", 3, func(i int) float64 { return 22 }, nil)
	store.queryErr["HYG"] = errors.New("connection reset")

	uc := newTestUseCase(store, &fakeGenerator{}, &fakeScorer{}, WithIndicators([]IndicatorSpec{
		{Key: "vix", Symbol: "VIX", Mode: "level"},
		{Key: "hyg_spread", Symbol: "HYG", Mode: "level"},
		{Key: "dxy_change", Symbol: "DXY", Mode: "change_1d"}, // no data
	}))

	state, errs := uc.BuildSnapshot(context.Background())
	if state.Float("vix", 0) != 22 {
		t.Fatalf("healthy indicator must survive, got %v", state.Float("vix", 0))
	}
	if _, ok := state["hyg_spread"]; ok {
		t.Fatalf("failed indicator must be absent from the state")
	}
	if len(errs) != 2 || errs["hyg_spread"] == "" || errs["dxy_change"] == "" {
		t.Fatalf("expected 2 degraded indicators, got %v", errs)
	}
}

func TestBuildSnapshotFeatureEnrichment(t *testing.T) {
	store := newFakeStorage()
	store.seedObservations("SPY", 60, func(i int) float64 { return 400 + float64(i) }, nil)

	uc := newTestUseCase(store, &fakeGenerator{}, &fakeScorer{},
		WithFeatureSymbol("SPY", 30*24*time.Hour))

	state, errs := uc.BuildSnapshot(context.Background())
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	for _, key := range []string{"rsi_14", "macd", "bb_upper", "sma_20", "realized_vol_20"} {
		if _, ok := state[key]; !ok {
			t.Fatalf("state missing derived feature %q", key)
		}
	}
	// strictly rising closes saturate the RSI
	if got := state.Float("rsi_14", 0); got != 100 {
		t.Fatalf("rsi_14 = %v, want 100", got)
	}
}

func TestBuildSnapshotIndicatorWinsOverFeature(t *testing.T) {
	store := newFakeStorage()
	store.seedObservations("SPY", 60, func(i int) float64 { return 400 + float64(i) }, nil)
	store.seedObservations("CUSTOM", 1, func(i int) float64 { return 42 }, nil)

	uc := newTestUseCase(store, &fakeGenerator{}, &fakeScorer{},
		WithIndicators([]IndicatorSpec{{Key: "rsi_14", Symbol: "CUSTOM", Mode: "level"}}),
		WithFeatureSymbol("SPY", 0))

	state, _ := uc.BuildSnapshot(context.Background())
	if got := state.Float("rsi_14", 0); got != 42 {
		t.Fatalf("configured indicator must win on key clash, got %v", got)
	}
}

func TestBuildSnapshotFeatureErrorDegrades(t *testing.T) {
	store := newFakeStorage() // no SPY data at all

	uc := newTestUseCase(store, &fakeGenerator{}, &fakeScorer{},
		WithFeatureSymbol("SPY", 0))

	state, errs := uc.BuildSnapshot(context.Background())
	if len(state) != 0 {
		t.Fatalf("expected empty state, got %v", state)
	}
	if errs["features"] == "" {
		t.Fatalf("feature failure must be reported, got %v", errs)
	}
}

func TestEvaluatePersistsEverything(t *testing.T) {
	store := newFakeStorage()
	gen := &fakeGenerator{signals: []models.Signal{{
		Scenario:       "volatility_spike",
		Severity:       models.SignalWarning,
		Confidence:     0.8,
		Triggers:       []string{"1-day VIX change: +25.0%"},
		Recommendation: "Monitor closely.",
		Timestamp:      time.Now(),
	}}}
	scorer := &fakeScorer{score: models.RiskScore{
		Total: 55, Level: models.RiskModerate, Timestamp: time.Now(),
	}}

	uc := newTestUseCase(store, gen, scorer)
	res, err := uc.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	uc.engine.Flush()

	if len(res.Signals) != 1 || len(res.Alerts) != 1 {
		t.Fatalf("signals=%d alerts=%d, want 1/1", len(res.Signals), len(res.Alerts))
	}
	if len(store.signals) != 1 || len(store.alerts) != 1 {
		t.Fatalf("stored signals=%d alerts=%d, want 1/1", len(store.signals), len(store.alerts))
	}
	if len(store.predictions) != 1 {
		t.Fatalf("expected 1 stored prediction, got %d", len(store.predictions))
	}
	p := store.predictions[0]
	if p.ModelType != "ensemble" || p.Direction != "stable" {
		t.Fatalf("prediction model=%q direction=%q", p.ModelType, p.Direction)
	}
	if p.Confidence != 0.55 {
		t.Fatalf("prediction confidence = %v, want 0.55", p.Confidence)
	}
	if p.Metadata["total"] != 55.0 || p.Metadata["level"] != models.RiskModerate {
		t.Fatalf("prediction metadata = %v", p.Metadata)
	}
}

func TestPersistPredictionDirection(t *testing.T) {
	cases := []struct {
		prev, next float64
		want       string
	}{
		{50, 60, "deteriorating"},
		{50, 40, "improving"},
		{50, 50.5, "stable"},
		{50, 49.5, "stable"},
	}
	for _, tc := range cases {
		store := newFakeStorage()
		store.predictions = []*models.Prediction{{
			ModelType: "ensemble",
			Metadata:  map[string]interface{}{"total": tc.prev},
		}}
		uc := newTestUseCase(store, &fakeGenerator{}, &fakeScorer{})

		uc.persistPrediction(context.Background(), models.RiskScore{Total: tc.next})
		if len(store.predictions) != 2 {
			t.Fatalf("expected appended prediction, got %d", len(store.predictions))
		}
		if got := store.predictions[1].Direction; got != tc.want {
			t.Fatalf("prev=%v next=%v: direction = %q, want %q", tc.prev, tc.next, got, tc.want)
		}
	}
}

func TestRiskNowUsesCache(t *testing.T) {
	store := newFakeStorage()
	scorer := &fakeScorer{score: models.RiskScore{
		Total: 30, Level: models.RiskLow, Timestamp: time.Now(),
	}}
	uc := newTestUseCase(store, &fakeGenerator{}, scorer)

	first, err := uc.RiskNow(context.Background())
	if err != nil {
		t.Fatalf("risk now: %v", err)
	}
	second, err := uc.RiskNow(context.Background())
	if err != nil {
		t.Fatalf("risk now: %v", err)
	}
	if scorer.calls != 1 {
		t.Fatalf("second call must hit the cache, scorer ran %d times", scorer.calls)
	}
	if first.Total != second.Total || second.Total != 30 {
		t.Fatalf("totals diverge: %v vs %v", first.Total, second.Total)
	}
}

func TestObservationsRangeValidation(t *testing.T) {
	uc := newTestUseCase(newFakeStorage(), &fakeGenerator{}, &fakeScorer{})

	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	if _, err := uc.ObservationsRange(context.Background(), "", now.Add(-time.Hour), now, 10); err == nil {
		t.Fatalf("empty symbol must be rejected")
	}
	if _, err := uc.ObservationsRange(context.Background(), "SPY", now, now, 10); err == nil {
		t.Fatalf("empty range must be rejected")
	}
	if _, err := uc.ObservationsRange(context.Background(), "SPY", now, now.Add(-time.Hour), 10); err == nil {
		t.Fatalf("inverted range must be rejected")
	}
}

func TestScanAnomalies(t *testing.T) {
	store := newFakeStorage()
	store.seedObservations("SPY", 41, func(i int) float64 {
		if i == 40 {
			return 100
		}
		return 10
	}, nil)

	uc := newTestUseCase(newFakeStorage(), &fakeGenerator{}, &fakeScorer{})
	if _, err := uc.ScanAnomalies(context.Background(), nil, time.Hour, 10); err == nil {
		t.Fatalf("empty symbol list must be rejected")
	}

	uc = newTestUseCase(store, &fakeGenerator{}, &fakeScorer{})
	found, err := uc.ScanAnomalies(context.Background(), []string{"SPY", "MISSING"}, 2*time.Hour, 10)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(found) == 0 {
		t.Fatalf("expected the outlier to be detected")
	}
	if found[0].Symbol != "SPY" || found[0].Score != 100 {
		t.Fatalf("top anomaly = %+v", found[0])
	}
	for i := 1; i < len(found); i++ {
		if found[i].Score > found[i-1].Score {
			t.Fatalf("results must be sorted by descending score")
		}
	}
}
