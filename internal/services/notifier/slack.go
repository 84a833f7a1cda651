package notifier

import (
	"context"
	"fmt"
	"strings"

	"FlowSentry/internal/domain/models"
	xhttp "FlowSentry/pkg/http"
	"FlowSentry/pkg/logger"
)

// severityColors maps alert severity names to Slack attachment colors.
var severityColors = map[string]string{
	"INFO":      "#36a64f",
	"WARNING":   "#ff9900",
	"CRITICAL":  "#ff0000",
	"EMERGENCY": "#8b0000",
}

const defaultColor = "#808080"

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts,omitempty"`
}

type slackPayload struct {
	Username    string            `json:"username"`
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

// Slack delivers alerts to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	channel    string
	username   string
	client     *xhttp.Client
	logger     *logger.Logger
}

type SlackOption func(*Slack)

// WithSlackChannel overrides the webhook's default channel.
func WithSlackChannel(channel string) SlackOption {
	return func(s *Slack) { s.channel = channel }
}

// WithSlackUsername overrides the bot display name.
func WithSlackUsername(username string) SlackOption {
	return func(s *Slack) { s.username = username }
}

// WithSlackClient overrides the HTTP client (tests).
func WithSlackClient(c *xhttp.Client) SlackOption {
	return func(s *Slack) { s.client = c }
}

// WithSlackLogger attaches a structured logger.
func WithSlackLogger(l *logger.Logger) SlackOption {
	return func(s *Slack) { s.logger = l }
}

func NewSlack(webhookURL string, opts ...SlackOption) *Slack {
	s := &Slack{
		webhookURL: webhookURL,
		username:   "FlowSentry Bot",
		client:     xhttp.NewClient(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts the alert to the webhook as a colored attachment.
func (s *Slack) Send(ctx context.Context, alert *models.Alert) error {
	payload := s.buildPayload(alert)

	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    s.webhookURL,
		Body:   payload,
	}, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("slack notification failed",
				logger.String("alert_id", alert.ID),
				logger.Error(err))
		}
		return fmt.Errorf("slack webhook: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("alert sent to slack", logger.String("alert_id", alert.ID))
	}
	return nil
}

func (s *Slack) buildPayload(alert *models.Alert) slackPayload {
	color, ok := severityColors[alert.SeverityName]
	if !ok {
		color = defaultColor
	}

	attachment := slackAttachment{
		Color: color,
		Title: scenarioTitle(alert.Scenario),
		Text:  alert.Message,
		Fields: []slackField{
			{Title: "Severity", Value: alert.SeverityName, Short: true},
			{Title: "Confidence", Value: fmt.Sprintf("%.1f%%", alert.Confidence*100), Short: true},
		},
		Footer: "FlowSentry",
		Ts:     alert.Timestamp.Unix(),
	}

	return slackPayload{
		Username:    s.username,
		Channel:     s.channel,
		Attachments: []slackAttachment{attachment},
	}
}

// scenarioTitle renders "liquidity_crisis" as "Liquidity Crisis".
func scenarioTitle(scenario string) string {
	words := strings.Split(scenario, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
