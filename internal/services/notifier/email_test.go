package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func testEmailConfig() EmailConfig {
	return EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "bot",
		Password: "secret",
		From:     "alerts@example.com",
		To:       []string{"ops@example.com", "risk@example.com"},
		UseTLS:   true,
	}
}

func TestEmailSendUsesConfiguredAddress(t *testing.T) {
	var gotAddr string
	e := NewEmail(testEmailConfig(), WithEmailSender(func(addr string, msg []byte) error {
		gotAddr = addr
		return nil
	}))

	if err := e.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("addr = %q", gotAddr)
	}
}

func TestEmailSendTransportError(t *testing.T) {
	e := NewEmail(testEmailConfig(), WithEmailSender(func(addr string, msg []byte) error {
		return errors.New("connection refused")
	}))

	err := e.Send(context.Background(), testAlert())
	if err == nil || !strings.Contains(err.Error(), "smtp send") {
		t.Fatalf("expected wrapped smtp error, got %v", err)
	}
}

func TestEmailSendContextCancelled(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	e := NewEmail(testEmailConfig(), WithEmailSender(func(addr string, msg []byte) error {
		close(started)
		<-release
		return nil
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	if err := e.Send(ctx, testAlert()); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEmailBuildMessage(t *testing.T) {
	var gotMsg string
	e := NewEmail(testEmailConfig(), WithEmailSender(func(addr string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	}))

	alert := testAlert()
	if err := e.Send(context.Background(), alert); err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, want := range []string{
		"From: alerts@example.com\r\n",
		"To: ops@example.com, risk@example.com\r\n",
		"Subject: [CRITICAL] Risk Off Transition\r\n",
		"MIME-Version: 1.0\r\n",
		"multipart/alternative",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Type: text/html; charset=utf-8",
		alert.Message,
		"VIX spike: 32.0",
		"Reduce exposure.",
		"Alert ID: a-1",
		"--" + mimeBoundary + "--\r\n",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Fatalf("message missing %q", want)
		}
	}
}

func TestEmailBuildHTMLSeverityColor(t *testing.T) {
	e := NewEmail(testEmailConfig())

	alert := testAlert()
	alert.SeverityName = "EMERGENCY"
	if html := e.buildHTML(alert); !strings.Contains(html, "#8b0000") {
		t.Fatalf("emergency html must use the emergency color")
	}

	alert.SeverityName = "nope"
	if html := e.buildHTML(alert); !strings.Contains(html, defaultColor) {
		t.Fatalf("unknown severity must fall back to the default color")
	}
}

func TestEmailBuildHTMLTimestamp(t *testing.T) {
	e := NewEmail(testEmailConfig())
	alert := testAlert()
	alert.Timestamp = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	if html := e.buildHTML(alert); !strings.Contains(html, "2025-03-14 09:30:00") {
		t.Fatalf("html must embed the formatted timestamp")
	}
}
