package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"FlowSentry/internal/domain/models"
	domsvc "FlowSentry/internal/domain/service"
	pmetrics "FlowSentry/internal/service/metrics"
	"FlowSentry/pkg/logger"
)

// Config declares the alert engine's dispatch policy. The cooldown and
// hourly cap are enforced: a suppressed signal produces no alert, no history
// entry, and no dispatch.
type Config struct {
	HistoryLimit     int
	SendTimeout      time.Duration
	CooldownPeriod   time.Duration // per-scenario; <=0 disables
	MaxAlertsPerHour int           // <=0 disables
}

func defaultConfig() Config {
	return Config{
		HistoryLimit:     1000,
		SendTimeout:      10 * time.Second,
		CooldownPeriod:   15 * time.Minute,
		MaxAlertsPerHour: 10,
	}
}

// Engine turns qualifying signals into dispatched, recorded alerts. It owns
// the bounded history exclusively; notifiers receive read-only copies.
type Engine struct {
	cfg    Config
	logger *logger.Logger

	cooldown *Cooldown

	mu      sync.Mutex // history + hourly counter
	history []*models.Alert
	hourly  []time.Time

	regMu     sync.RWMutex
	notifiers map[string]domsvc.Notifier

	inflight sync.WaitGroup
	now      func() time.Time
	newID    func() string
}

type EngineOption func(*Engine)

// WithConfig overrides the dispatch policy.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		if cfg.HistoryLimit > 0 {
			e.cfg.HistoryLimit = cfg.HistoryLimit
		}
		if cfg.SendTimeout > 0 {
			e.cfg.SendTimeout = cfg.SendTimeout
		}
		e.cfg.CooldownPeriod = cfg.CooldownPeriod
		e.cfg.MaxAlertsPerHour = cfg.MaxAlertsPerHour
	}
}

// WithEngineLogger attaches a structured logger.
func WithEngineLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithEngineClock overrides the timestamp source (tests).
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(opts ...EngineOption) *Engine {
	pmetrics.Register()
	e := &Engine{
		cfg:       defaultConfig(),
		cooldown:  NewCooldown(),
		notifiers: make(map[string]domsvc.Notifier),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterNotifier adds a delivery channel under a routing name. The registry
// is consulted at dispatch time, so a channel registered between evaluation
// and dispatch still receives that dispatch.
func (e *Engine) RegisterNotifier(name string, n domsvc.Notifier) {
	e.regMu.Lock()
	e.notifiers[name] = n
	e.regMu.Unlock()
	if e.logger != nil {
		e.logger.Info("notifier registered", logger.String("channel", name))
	}
}

// EvaluateAlerts derives severity for each signal, builds and records alerts
// for those at WARNING or above, and dispatches them. Returns the alerts
// created by this call.
func (e *Engine) EvaluateAlerts(ctx context.Context, signals []models.Signal) []*models.Alert {
	var out []*models.Alert
	for i := range signals {
		sig := &signals[i]
		sev := models.SeverityFromSignal(sig.Severity, sig.Confidence)
		if sev < models.AlertWarning {
			continue
		}
		if !e.admit(sig.Scenario) {
			if e.logger != nil {
				e.logger.Debug("alert suppressed by rate policy",
					logger.String("scenario", sig.Scenario))
			}
			continue
		}
		alert := e.createAlert(sig, sev)
		out = append(out, alert)
		e.dispatch(ctx, alert)
	}
	if e.logger != nil {
		e.logger.Info("alerts evaluated",
			logger.Int("signals", len(signals)),
			logger.Int("alerts", len(out)))
	}
	return out
}

// admit applies the per-scenario cooldown and the hourly cap.
func (e *Engine) admit(scenario string) bool {
	if !e.cooldown.Allow(scenario, e.cfg.CooldownPeriod) {
		return false
	}
	if e.cfg.MaxAlertsPerHour <= 0 {
		return true
	}
	now := e.now()
	cutoff := now.Add(-time.Hour)
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.hourly[:0]
	for _, ts := range e.hourly {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	e.hourly = kept
	if len(e.hourly) >= e.cfg.MaxAlertsPerHour {
		return false
	}
	e.hourly = append(e.hourly, now)
	return true
}

// createAlert builds the alert record and appends it to bounded history.
// The signal's triggers and recommendation are carried over verbatim.
func (e *Engine) createAlert(sig *models.Signal, sev models.AlertSeverity) *models.Alert {
	alert := &models.Alert{
		ID:             e.newID(),
		Timestamp:      e.now(),
		Severity:       sev,
		SeverityName:   sev.String(),
		Scenario:       sig.Scenario,
		Confidence:     sig.Confidence,
		Message:        formatMessage(sig),
		Triggers:       sig.Triggers,
		Recommendation: sig.Recommendation,
		Metadata:       sig.Metadata,
	}
	e.mu.Lock()
	e.history = append(e.history, alert)
	if len(e.history) > e.cfg.HistoryLimit {
		e.history = e.history[len(e.history)-e.cfg.HistoryLimit:]
	}
	e.mu.Unlock()
	return alert
}

// channelsFor resolves the routing set for a severity against the current
// registry. Unregistered names in a routing set are silently skipped.
func (e *Engine) channelsFor(sev models.AlertSeverity) map[string]domsvc.Notifier {
	e.regMu.RLock()
	defer e.regMu.RUnlock()

	targets := make(map[string]domsvc.Notifier)
	switch sev {
	case models.AlertEmergency:
		for name, n := range e.notifiers {
			targets[name] = n
		}
	case models.AlertCritical:
		for _, name := range []string{"slack", "email"} {
			if n, ok := e.notifiers[name]; ok {
				targets[name] = n
			}
		}
	case models.AlertWarning:
		if n, ok := e.notifiers["slack"]; ok {
			targets["slack"] = n
		}
	}
	return targets
}

// dispatch fans the alert out to its severity's channels. Each send runs in
// its own goroutine with a bounded timeout; no lock is held across a send,
// and one channel's failure or stall never touches the others. Sends are
// detached from the caller's cancellation: an evaluation cycle returning
// must not kill an in-flight delivery before its timeout.
func (e *Engine) dispatch(ctx context.Context, alert *models.Alert) {
	for name, n := range e.channelsFor(alert.Severity) {
		e.inflight.Add(1)
		go func(name string, n domsvc.Notifier) {
			defer e.inflight.Done()
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.SendTimeout)
			defer cancel()
			if err := n.Send(sendCtx, alert); err != nil {
				if e.logger != nil {
					e.logger.Error("alert send failed",
						logger.String("channel", name),
						logger.String("alert_id", alert.ID),
						logger.Error(err))
				}
				return
			}
			pmetrics.AlertsDispatched.WithLabelValues(name, alert.SeverityName).Inc()
			if e.logger != nil {
				e.logger.Info("alert sent",
					logger.String("channel", name),
					logger.String("alert_id", alert.ID))
			}
		}(name, n)
	}
}

// Flush blocks until in-flight sends finish. Used at shutdown and in tests.
func (e *Engine) Flush() { e.inflight.Wait() }

// GetRecentAlerts returns up to limit most recent alerts in insertion order.
func (e *Engine) GetRecentAlerts(limit int) []*models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 || limit > len(e.history) {
		limit = len(e.history)
	}
	out := make([]*models.Alert, limit)
	copy(out, e.history[len(e.history)-limit:])
	return out
}

// ClearHistory drops all recorded alerts.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	e.history = nil
	e.mu.Unlock()
	if e.logger != nil {
		e.logger.Info("alert history cleared")
	}
}

var severityEmoji = map[string]string{
	models.SignalInfo:      "ℹ️",
	models.SignalWarning:   "⚠️",
	models.SignalCritical:  "🔴",
	models.SignalEmergency: "🚨",
}

// formatMessage assembles the human-readable alert body from the signal.
func formatMessage(sig *models.Signal) string {
	emoji, ok := severityEmoji[sig.Severity]
	if !ok {
		emoji = "📊"
	}
	title := titleCase(sig.Scenario)

	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s**\n\n", emoji, title)
	fmt.Fprintf(&b, "Confidence: %.1f%%\n\n", sig.Confidence*100)
	b.WriteString("**Detected triggers:**\n")
	for _, t := range sig.Triggers {
		fmt.Fprintf(&b, "• %s\n", t)
	}
	fmt.Fprintf(&b, "\n**Recommendation:**\n%s", sig.Recommendation)
	return b.String()
}

// titleCase renders "risk_off_transition" as "Risk Off Transition".
func titleCase(scenario string) string {
	words := strings.Split(scenario, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
