package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"FlowSentry/internal/domain/models"
	"FlowSentry/pkg/logger"
)

// EmailConfig holds SMTP connection and addressing settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	UseTLS   bool // STARTTLS on a plain connection; false means implicit TLS
}

// Email delivers alerts as multipart plain+HTML messages over SMTP.
type Email struct {
	cfg    EmailConfig
	logger *logger.Logger
	send   func(addr string, msg []byte) error
}

type EmailOption func(*Email)

// WithEmailLogger attaches a structured logger.
func WithEmailLogger(l *logger.Logger) EmailOption {
	return func(e *Email) { e.logger = l }
}

// WithEmailSender overrides the SMTP transport (tests).
func WithEmailSender(send func(addr string, msg []byte) error) EmailOption {
	return func(e *Email) { e.send = send }
}

func NewEmail(cfg EmailConfig, opts ...EmailOption) *Email {
	e := &Email{cfg: cfg}
	e.send = e.smtpSend
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Send builds and submits the email for one alert.
func (e *Email) Send(ctx context.Context, alert *models.Alert) error {
	msg := e.buildMessage(alert)

	done := make(chan error, 1)
	go func() {
		done <- e.send(fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port), msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			if e.logger != nil {
				e.logger.Error("email notification failed",
					logger.String("alert_id", alert.ID),
					logger.Error(err))
			}
			return fmt.Errorf("smtp send: %w", err)
		}
	}

	if e.logger != nil {
		e.logger.Info("alert sent via email", logger.String("alert_id", alert.ID))
	}
	return nil
}

func (e *Email) smtpSend(addr string, msg []byte) error {
	auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)

	if e.cfg.UseTLS {
		// smtp.SendMail negotiates STARTTLS when the server advertises it.
		return smtp.SendMail(addr, auth, e.cfg.From, e.cfg.To, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: e.cfg.Host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	client, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(e.cfg.From); err != nil {
		return err
	}
	for _, rcpt := range e.cfg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

const mimeBoundary = "flowsentry-alert"

func (e *Email) buildMessage(alert *models.Alert) []byte {
	var b strings.Builder

	subject := fmt.Sprintf("[%s] %s", alert.SeverityName, scenarioTitle(alert.Scenario))

	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(alert.Message)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(e.buildHTML(alert))
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}

func (e *Email) buildHTML(alert *models.Alert) string {
	color, ok := severityColors[alert.SeverityName]
	if !ok {
		color = defaultColor
	}

	var triggers strings.Builder
	for _, t := range alert.Triggers {
		fmt.Fprintf(&triggers, `<div class="trigger">&bull; %s</div>`, t)
	}

	return fmt.Sprintf(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; }
.header { background-color: %s; color: white; padding: 20px; }
.content { padding: 20px; }
.trigger { margin: 10px 0; padding: 10px; background-color: #f5f5f5; }
.recommendation { margin: 20px 0; padding: 15px; background-color: #e3f2fd; border-left: 4px solid #2196f3; }
.footer { padding: 10px; text-align: center; color: #666; font-size: 12px; }
</style>
</head>
<body>
<div class="header">
<h2>%s</h2>
<p>Severity: %s | Confidence: %.1f%%</p>
</div>
<div class="content">
<h3>Detected signals:</h3>
%s
<div class="recommendation">
<h3>Recommendation:</h3>
<p>%s</p>
</div>
<p><small>Alert ID: %s</small></p>
<p><small>Time: %s</small></p>
</div>
<div class="footer">
<p>FlowSentry</p>
</div>
</body>
</html>`,
		color,
		scenarioTitle(alert.Scenario),
		alert.SeverityName,
		alert.Confidence*100,
		triggers.String(),
		alert.Recommendation,
		alert.ID,
		alert.Timestamp.Format("2006-01-02 15:04:05"),
	)
}
