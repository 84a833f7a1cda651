package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	c := &Config{Environment: "development"}
	c.Backend.Type = "clickhouse"
	c.Collector.APIKey = "key"
	c.Collector.Symbols = []string{"SPY", "VIX"}
	return c
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing environment", func(c *Config) { c.Environment = "" }, "environment"},
		{"missing backend", func(c *Config) { c.Backend.Type = "" }, "backend.type"},
		{"unknown backend", func(c *Config) { c.Backend.Type = "postgres" }, "backend.type"},
		{"no symbols", func(c *Config) { c.Collector.Symbols = nil }, "symbols"},
		{"missing api key", func(c *Config) { c.Collector.APIKey = "" }, "api_key"},
		{"slack without webhook", func(c *Config) { c.Notifiers.Slack.Enabled = true }, "webhook_url"},
		{"email without host", func(c *Config) { c.Notifiers.Email.Enabled = true }, "email.host"},
		{"email without recipients", func(c *Config) {
			c.Notifiers.Email.Enabled = true
			c.Notifiers.Email.Host = "smtp.example.com"
			c.Notifiers.Email.From = "a@example.com"
		}, "from and to"},
		{"weights off sum", func(c *Config) {
			c.Risk.Weights = map[string]float64{"a": 0.5, "b": 0.4}
		}, "sum to 1.0"},
	}
	for _, tc := range cases {
		c := validConfig()
		tc.mutate(c)
		err := c.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestValidateWeightsTolerance(t *testing.T) {
	c := validConfig()
	c.Risk.Weights = map[string]float64{
		"market_volatility": 0.25,
		"liquidity_risk":    0.25,
		"credit_risk":       0.20,
		"currency_risk":     0.20,
		"geopolitical_risk": 0.10,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("default weights rejected: %v", err)
	}
}

func TestWeekdayOrDefault(t *testing.T) {
	cases := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"Monday":    time.Monday,
		"FRIDAY":    time.Friday,
		"saturday":  time.Saturday,
		"":          time.Saturday,
		"not-a-day": time.Saturday,
	}
	for in, want := range cases {
		c := &Config{}
		c.Scheduler.WeeklyDay = in
		if got := c.WeekdayOrDefault(); got != want {
			t.Fatalf("WeekdayOrDefault(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
environment: production
server:
  port: 9090
  read_timeout: 15s
backend:
  type: kafka
kafka:
  brokers: ["localhost:9092"]
  topic: market.ticks
collector:
  api_key: abc123
  symbols: [SPY, VIX, TLT]
stream:
  window_size: 200
detector:
  z_threshold: 2.5
features:
  symbol: SPY
  lookback: 720h
scheduler:
  weekly_day: sunday
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Environment != "production" || c.Server.Port != 9090 {
		t.Fatalf("unexpected server config %+v", c.Server)
	}
	if c.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("read_timeout = %v", c.Server.ReadTimeout)
	}
	if c.Backend.Type != "kafka" || c.Kafka.Topic != "market.ticks" {
		t.Fatalf("unexpected backend config")
	}
	if len(c.Collector.Symbols) != 3 || c.Collector.Symbols[2] != "TLT" {
		t.Fatalf("symbols = %v", c.Collector.Symbols)
	}
	if c.Stream.WindowSize != 200 || c.Detector.ZThreshold != 2.5 {
		t.Fatalf("analytics config lost in parsing")
	}
	if c.Features.Lookback != 720*time.Hour {
		t.Fatalf("features.lookback = %v", c.Features.Lookback)
	}
	if c.WeekdayOrDefault() != time.Sunday {
		t.Fatalf("weekly_day = %v", c.WeekdayOrDefault())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("environment: dev\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("config without backend must be rejected")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
environment: development
backend:
  type: clickhouse
collector:
  api_key: from-file
  symbols: [SPY]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	t.Setenv("COLLECTOR_API_KEY", "from-env")
	t.Setenv("SYMBOLS", "GLD,DXY")
	t.Setenv("BACKEND", "kafka")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Collector.APIKey != "from-env" {
		t.Fatalf("api key = %q", c.Collector.APIKey)
	}
	if len(c.Collector.Symbols) != 2 || c.Collector.Symbols[0] != "GLD" {
		t.Fatalf("symbols = %v", c.Collector.Symbols)
	}
	if c.Backend.Type != "kafka" {
		t.Fatalf("backend = %q", c.Backend.Type)
	}
}
