package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"FlowSentry/internal/domain/models"
)

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []*models.Alert
	fail  bool
	block chan struct{}
}

func (f *fakeNotifier) Send(ctx context.Context, a *models.Alert) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.fail {
		return errors.New("send failed")
	}
	f.mu.Lock()
	f.sent = append(f.sent, a)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func signal(scenario, severity string, confidence float64) models.Signal {
	return models.Signal{
		Scenario:       scenario,
		Severity:       severity,
		Confidence:     confidence,
		Triggers:       []string{"VIX spike: 32.0"},
		Recommendation: "Reduce exposure.",
		Timestamp:      time.Now(),
	}
}

func newTestEngine(opts ...EngineOption) *Engine {
	base := []EngineOption{WithConfig(Config{
		HistoryLimit:     100,
		SendTimeout:      time.Second,
		CooldownPeriod:   0, // individual tests opt back in
		MaxAlertsPerHour: 0,
	})}
	return NewEngine(append(base, opts...)...)
}

func TestEvaluateAlertsSeverityMapping(t *testing.T) {
	e := newTestEngine()
	out := e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("a", models.SignalInfo, 0.5),     // below warning, dropped
		signal("b", models.SignalWarning, 0.5),  // warning
		signal("c", models.SignalCritical, 0.5), // critical
	})
	e.Flush()

	if len(out) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(out))
	}
	if out[0].Severity != models.AlertWarning || out[1].Severity != models.AlertCritical {
		t.Fatalf("unexpected severities %v %v", out[0].Severity, out[1].Severity)
	}
}

func TestEvaluateAlertsConfidenceEscalation(t *testing.T) {
	e := newTestEngine()
	out := e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("risk_off_transition", models.SignalCritical, 1.0),
	})
	e.Flush()

	if len(out) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(out))
	}
	if out[0].Severity != models.AlertEmergency {
		t.Fatalf("confidence 1.0 must escalate critical to emergency, got %v", out[0].SeverityName)
	}
	if out[0].SeverityName != "EMERGENCY" {
		t.Fatalf("unexpected severity name %q", out[0].SeverityName)
	}
}

func TestEvaluateAlertsInfoEscalatesToWarning(t *testing.T) {
	e := newTestEngine()
	out := e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("x", models.SignalInfo, 0.95),
	})
	e.Flush()

	// info escalated by confidence lands at warning and now qualifies
	if len(out) != 1 || out[0].Severity != models.AlertWarning {
		t.Fatalf("expected escalated warning alert, got %v", out)
	}
}

func TestDispatchRouting(t *testing.T) {
	slack := &fakeNotifier{}
	email := &fakeNotifier{}
	e := newTestEngine()
	e.RegisterNotifier("slack", slack)
	e.RegisterNotifier("email", email)

	// warning routes to slack only
	e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("w", models.SignalWarning, 0.5),
	})
	e.Flush()
	if slack.count() != 1 || email.count() != 0 {
		t.Fatalf("warning: slack=%d email=%d, want 1/0", slack.count(), email.count())
	}

	// critical routes to slack and email
	e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("c", models.SignalCritical, 0.5),
	})
	e.Flush()
	if slack.count() != 2 || email.count() != 1 {
		t.Fatalf("critical: slack=%d email=%d, want 2/1", slack.count(), email.count())
	}

	// emergency routes to every registered channel
	e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("e", models.SignalEmergency, 0.5),
	})
	e.Flush()
	if slack.count() != 3 || email.count() != 2 {
		t.Fatalf("emergency: slack=%d email=%d, want 3/2", slack.count(), email.count())
	}
}

func TestDispatchFailureIsolated(t *testing.T) {
	slack := &fakeNotifier{fail: true}
	email := &fakeNotifier{}
	e := newTestEngine()
	e.RegisterNotifier("slack", slack)
	e.RegisterNotifier("email", email)

	out := e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("c", models.SignalCritical, 0.5),
	})
	e.Flush()

	if len(out) != 1 {
		t.Fatalf("alert must still be recorded, got %d", len(out))
	}
	if email.count() != 1 {
		t.Fatalf("email must deliver despite slack failure, got %d", email.count())
	}
}

func TestCooldownSuppressesRepeat(t *testing.T) {
	e := newTestEngine(WithConfig(Config{CooldownPeriod: 15 * time.Minute}))

	first := e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("risk_off_transition", models.SignalCritical, 0.5),
	})
	second := e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("risk_off_transition", models.SignalCritical, 0.5),
	})
	e.Flush()

	if len(first) != 1 {
		t.Fatalf("first firing must alert, got %d", len(first))
	}
	if len(second) != 0 {
		t.Fatalf("repeat within cooldown must be suppressed, got %d", len(second))
	}
	// a suppressed signal leaves no history entry
	if got := len(e.GetRecentAlerts(0)); got != 1 {
		t.Fatalf("expected 1 history entry, got %d", got)
	}
}

func TestCooldownPerScenario(t *testing.T) {
	e := newTestEngine(WithConfig(Config{CooldownPeriod: 15 * time.Minute}))

	e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("scenario_a", models.SignalCritical, 0.5),
	})
	out := e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("scenario_b", models.SignalCritical, 0.5),
	})
	e.Flush()

	if len(out) != 1 {
		t.Fatalf("different scenario must not share cooldown, got %d", len(out))
	}
}

func TestHourlyCap(t *testing.T) {
	e := newTestEngine(WithConfig(Config{MaxAlertsPerHour: 2}))

	var out []*models.Alert
	for _, sc := range []string{"s1", "s2", "s3"} {
		out = append(out, e.EvaluateAlerts(context.Background(), []models.Signal{
			signal(sc, models.SignalCritical, 0.5),
		})...)
	}
	e.Flush()

	if len(out) != 2 {
		t.Fatalf("hourly cap of 2 must hold, got %d alerts", len(out))
	}
}

func TestAlertCarriesSignalVerbatim(t *testing.T) {
	e := newTestEngine()
	sig := signal("risk_off_transition", models.SignalCritical, 0.75)
	sig.Triggers = []string{"High-yield spread widening: 6.00%p", "Heavy TLT inflow: +1000000"}

	out := e.EvaluateAlerts(context.Background(), []models.Signal{sig})
	e.Flush()

	if len(out) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(out))
	}
	a := out[0]
	if a.ID == "" {
		t.Fatalf("alert must have an id")
	}
	if len(a.Triggers) != 2 || a.Triggers[0] != sig.Triggers[0] {
		t.Fatalf("triggers must carry over verbatim, got %v", a.Triggers)
	}
	if a.Recommendation != sig.Recommendation {
		t.Fatalf("recommendation must carry over verbatim")
	}
	if !strings.Contains(a.Message, "Risk Off Transition") {
		t.Fatalf("message must contain the title-cased scenario: %q", a.Message)
	}
	if !strings.Contains(a.Message, sig.Triggers[1]) {
		t.Fatalf("message must embed the trigger lines: %q", a.Message)
	}
	if !strings.Contains(a.Message, "75.0%") {
		t.Fatalf("message must embed the confidence: %q", a.Message)
	}
}

func TestHistoryBounded(t *testing.T) {
	e := newTestEngine(WithConfig(Config{HistoryLimit: 3}))

	for i := 0; i < 5; i++ {
		e.EvaluateAlerts(context.Background(), []models.Signal{
			signal("s"+string(rune('a'+i)), models.SignalWarning, 0.5),
		})
	}
	e.Flush()

	recent := e.GetRecentAlerts(0)
	if len(recent) != 3 {
		t.Fatalf("history must be bounded at 3, got %d", len(recent))
	}
	if recent[2].Scenario != "se" {
		t.Fatalf("expected newest last, got %q", recent[2].Scenario)
	}
}

func TestGetRecentAlertsLimit(t *testing.T) {
	e := newTestEngine()
	for _, sc := range []string{"a", "b", "c"} {
		e.EvaluateAlerts(context.Background(), []models.Signal{
			signal(sc, models.SignalWarning, 0.5),
		})
	}
	e.Flush()

	recent := e.GetRecentAlerts(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2, got %d", len(recent))
	}
	if recent[0].Scenario != "b" || recent[1].Scenario != "c" {
		t.Fatalf("expected the two most recent, got %v %v", recent[0].Scenario, recent[1].Scenario)
	}
}

func TestClearHistory(t *testing.T) {
	e := newTestEngine()
	e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("a", models.SignalWarning, 0.5),
	})
	e.Flush()

	e.ClearHistory()
	if got := len(e.GetRecentAlerts(0)); got != 0 {
		t.Fatalf("expected empty history, got %d", got)
	}
}

func TestDispatchOutlivesCaller(t *testing.T) {
	block := make(chan struct{})
	slow := &fakeNotifier{block: block}
	e := newTestEngine()
	e.RegisterNotifier("slack", slow)

	ctx, cancel := context.WithCancel(context.Background())
	out := e.EvaluateAlerts(ctx, []models.Signal{
		signal("s", models.SignalWarning, 0.5),
	})
	cancel() // the evaluation cycle is done; the delivery is not
	time.Sleep(50 * time.Millisecond)

	close(block)
	e.Flush()

	if len(out) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(out))
	}
	if slow.count() != 1 {
		t.Fatalf("in-flight send must survive caller cancellation, delivered %d", slow.count())
	}
}

func TestSendTimeout(t *testing.T) {
	block := make(chan struct{})
	slow := &fakeNotifier{block: block}
	e := newTestEngine(WithConfig(Config{SendTimeout: 50 * time.Millisecond}))
	e.RegisterNotifier("slack", slow)

	e.EvaluateAlerts(context.Background(), []models.Signal{
		signal("s", models.SignalWarning, 0.5),
	})
	done := make(chan struct{})
	go func() { e.Flush(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stalled send must be released by the timeout")
	}
	close(block)
	if slow.count() != 0 {
		t.Fatalf("timed-out send must not record delivery")
	}
}
