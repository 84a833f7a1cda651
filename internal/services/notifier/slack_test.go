package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FlowSentry/internal/domain/models"
)

func testAlert() *models.Alert {
	return &models.Alert{
		ID:             "a-1",
		Timestamp:      time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Severity:       models.AlertCritical,
		SeverityName:   "CRITICAL",
		Scenario:       "risk_off_transition",
		Confidence:     0.75,
		Message:        "🔴 **Risk Off Transition**",
		Triggers:       []string{"VIX spike: 32.0"},
		Recommendation: "Reduce exposure.",
	}
}

func TestSlackSendPayload(t *testing.T) {
	var got slackPayload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL,
		WithSlackChannel("#alerts"),
		WithSlackUsername("sentry"))

	alert := testAlert()
	if err := s.Send(context.Background(), alert); err != nil {
		t.Fatalf("send: %v", err)
	}

	if contentType != "application/json" {
		t.Fatalf("content type = %q", contentType)
	}
	if got.Username != "sentry" || got.Channel != "#alerts" {
		t.Fatalf("username=%q channel=%q", got.Username, got.Channel)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(got.Attachments))
	}
	att := got.Attachments[0]
	if att.Color != "#ff0000" {
		t.Fatalf("critical must be red, got %q", att.Color)
	}
	if att.Title != "Risk Off Transition" {
		t.Fatalf("title = %q", att.Title)
	}
	if att.Text != alert.Message {
		t.Fatalf("text must carry the alert message")
	}
	if att.Ts != alert.Timestamp.Unix() {
		t.Fatalf("ts = %d", att.Ts)
	}
	if len(att.Fields) != 2 || att.Fields[1].Value != "75.0%" {
		t.Fatalf("unexpected fields %v", att.Fields)
	}
}

func TestSlackSendDefaults(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewSlack(srv.URL).Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Username != "FlowSentry Bot" {
		t.Fatalf("default username = %q", got.Username)
	}
	if got.Channel != "" {
		t.Fatalf("channel must be omitted by default, got %q", got.Channel)
	}
}

func TestSlackSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewSlack(srv.URL).Send(context.Background(), testAlert()); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestSlackUnknownSeverityColor(t *testing.T) {
	alert := testAlert()
	alert.SeverityName = "WEIRD"

	p := NewSlack("http://unused").buildPayload(alert)
	if p.Attachments[0].Color != defaultColor {
		t.Fatalf("unknown severity must fall back to %s, got %s",
			defaultColor, p.Attachments[0].Color)
	}
}

func TestScenarioTitle(t *testing.T) {
	cases := map[string]string{
		"liquidity_crisis":      "Liquidity Crisis",
		"korea_capital_outflow": "Korea Capital Outflow",
		"volatility_spike":      "Volatility Spike",
		"single":                "Single",
	}
	for in, want := range cases {
		if got := scenarioTitle(in); got != want {
			t.Fatalf("scenarioTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
