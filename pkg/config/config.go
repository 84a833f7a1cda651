package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Collector struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"collector"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Stream struct {
		WindowSize int `yaml:"window_size"`
	} `yaml:"stream"`
	Detector struct {
		ZThreshold    float64 `yaml:"z_threshold"`
		Contamination float64 `yaml:"contamination"`
	} `yaml:"detector"`
	Risk struct {
		Weights map[string]float64 `yaml:"weights"`
	} `yaml:"risk"`
	Indicators []Indicator `yaml:"indicators"`
	Features   struct {
		Symbol   string        `yaml:"symbol"`
		Lookback time.Duration `yaml:"lookback"`
	} `yaml:"features"`
	Alerting struct {
		HistoryLimit     int           `yaml:"history_limit"`
		SendTimeout      time.Duration `yaml:"send_timeout"`
		CooldownPeriod   time.Duration `yaml:"cooldown_period"`
		MaxAlertsPerHour int           `yaml:"max_alerts_per_hour"`
	} `yaml:"alerting"`
	Notifiers struct {
		Slack struct {
			Enabled    bool   `yaml:"enabled"`
			WebhookURL string `yaml:"webhook_url"`
			Channel    string `yaml:"channel"`
			Username   string `yaml:"username"`
		} `yaml:"slack"`
		Email struct {
			Enabled  bool     `yaml:"enabled"`
			Host     string   `yaml:"host"`
			Port     int      `yaml:"port"`
			Username string   `yaml:"username"`
			Password string   `yaml:"password"`
			From     string   `yaml:"from"`
			To       []string `yaml:"to"`
			UseTLS   bool     `yaml:"use_tls"`
		} `yaml:"email"`
	} `yaml:"notifiers"`
	Scheduler struct {
		RealtimeInterval time.Duration `yaml:"realtime_interval"`
		DailyAt          string        `yaml:"daily_at"`
		WeeklyDay        string        `yaml:"weekly_day"`
		CleanupAt        string        `yaml:"cleanup_at"`
		RetentionDays    int           `yaml:"retention_days"`
	} `yaml:"scheduler"`
}

// Indicator maps one market-state key onto a stored symbol.
type Indicator struct {
	Key      string        `yaml:"key"`
	Symbol   string        `yaml:"symbol"`
	Mode     string        `yaml:"mode"` // level | change_1d | flow
	Lookback time.Duration `yaml:"lookback"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("COLLECTOR_API_KEY"); v != "" {
		c.Collector.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Collector.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.Notifiers.Slack.WebhookURL = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.Notifiers.Email.Password = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if len(c.Collector.Symbols) == 0 {
		return fmt.Errorf("collector.symbols cannot be empty")
	}
	if c.Collector.APIKey == "" {
		return fmt.Errorf("collector.api_key is required")
	}
	if c.Notifiers.Slack.Enabled && c.Notifiers.Slack.WebhookURL == "" {
		return fmt.Errorf("notifiers.slack.webhook_url is required when slack is enabled")
	}
	if c.Notifiers.Email.Enabled {
		if c.Notifiers.Email.Host == "" {
			return fmt.Errorf("notifiers.email.host is required when email is enabled")
		}
		if c.Notifiers.Email.From == "" || len(c.Notifiers.Email.To) == 0 {
			return fmt.Errorf("notifiers.email.from and to are required when email is enabled")
		}
	}
	if len(c.Risk.Weights) > 0 {
		var sum float64
		for _, w := range c.Risk.Weights {
			sum += w
		}
		if sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("risk.weights must sum to 1.0, got %.3f", sum)
		}
	}
	return nil
}

// WeekdayOrDefault parses the scheduler weekday name, defaulting to Saturday.
func (c *Config) WeekdayOrDefault() time.Weekday {
	switch strings.ToLower(c.Scheduler.WeeklyDay) {
	case "sunday":
		return time.Sunday
	case "monday":
		return time.Monday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	default:
		return time.Saturday
	}
}
