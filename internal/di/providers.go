package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"FlowSentry/internal/domain/repository"
	"FlowSentry/internal/handler/api"
	mid "FlowSentry/internal/middleware"
	internalrepo "FlowSentry/internal/repository"
	icache "FlowSentry/internal/service/cache"
	"FlowSentry/internal/service/marketdata"
	"FlowSentry/internal/services/alerts"
	"FlowSentry/internal/services/analytics"
	"FlowSentry/internal/services/notifier"
	"FlowSentry/internal/usecase"
	pkgcache "FlowSentry/pkg/cache"
	pkgch "FlowSentry/pkg/clickhouse"
	"FlowSentry/pkg/config"
	pkgkafka "FlowSentry/pkg/kafka"
	"FlowSentry/pkg/logger"
	"FlowSentry/pkg/metrics"
	"FlowSentry/pkg/queue"
	"FlowSentry/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	l, err := logger.New(&logger.Config{Level: level, Format: format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the database exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStorage creates ClickHouse storage and ensures the pipeline tables exist.
func ProvideStorage(chClient *pkgch.Client, l *logger.Logger) (repository.Storage, error) {
	store := internalrepo.NewClickHouseStorage(chClient)
	if s, ok := store.(*internalrepo.ClickHouseStorage); ok {
		s.SetLogger(l)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}
	return store, nil
}

// ProvidePublisher creates Kafka publisher repository.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideMarketStream creates the WebSocket market stream.
func ProvideMarketStream(cfg *config.Config, l *logger.Logger) repository.MarketStream {
	return marketdata.New(
		cfg.Collector.APIKey,
		cfg.Collector.WebSocketURL,
		cfg.Collector.Symbols,
		cfg.Collector.ReconnectDelay,
		cfg.Collector.PingInterval,
		l,
	)
}

// ProvideStreamProcessor creates the rolling-window processor.
func ProvideStreamProcessor(cfg *config.Config) *analytics.StreamProcessor {
	var opts []analytics.StreamOption
	if cfg.Stream.WindowSize > 0 {
		opts = append(opts, analytics.WithWindowSize(cfg.Stream.WindowSize))
	}
	return analytics.NewStreamProcessor(opts...)
}

// ProvideAnomalyDetector creates the batch anomaly detector.
func ProvideAnomalyDetector(cfg *config.Config, l *logger.Logger) *analytics.AnomalyDetector {
	opts := []analytics.DetectorOption{analytics.WithDetectorLogger(l)}
	if cfg.Detector.ZThreshold > 0 {
		opts = append(opts, analytics.WithZThreshold(cfg.Detector.ZThreshold))
	}
	if cfg.Detector.Contamination > 0 {
		opts = append(opts, analytics.WithContamination(cfg.Detector.Contamination))
	}
	return analytics.NewAnomalyDetector(opts...)
}

// ProvideSignalGenerator creates the scenario rule evaluator.
func ProvideSignalGenerator(l *logger.Logger) *analytics.SignalGenerator {
	return analytics.NewSignalGenerator(analytics.WithGeneratorLogger(l))
}

// ProvideRiskScorer creates the composite risk scorer. Empty config weights
// fall back to the documented defaults.
func ProvideRiskScorer(cfg *config.Config) (*analytics.RiskScorer, error) {
	return analytics.NewRiskScorer(cfg.Risk.Weights)
}

// ProvideAlertEngine creates the alert engine and registers the enabled
// notification channels.
func ProvideAlertEngine(cfg *config.Config, l *logger.Logger) *alerts.Engine {
	engine := alerts.NewEngine(
		alerts.WithEngineLogger(l),
		alerts.WithConfig(alerts.Config{
			HistoryLimit:     cfg.Alerting.HistoryLimit,
			SendTimeout:      cfg.Alerting.SendTimeout,
			CooldownPeriod:   cfg.Alerting.CooldownPeriod,
			MaxAlertsPerHour: cfg.Alerting.MaxAlertsPerHour,
		}),
	)

	if cfg.Notifiers.Slack.Enabled {
		opts := []notifier.SlackOption{notifier.WithSlackLogger(l)}
		if cfg.Notifiers.Slack.Channel != "" {
			opts = append(opts, notifier.WithSlackChannel(cfg.Notifiers.Slack.Channel))
		}
		if cfg.Notifiers.Slack.Username != "" {
			opts = append(opts, notifier.WithSlackUsername(cfg.Notifiers.Slack.Username))
		}
		engine.RegisterNotifier("slack", notifier.NewSlack(cfg.Notifiers.Slack.WebhookURL, opts...))
	}
	if cfg.Notifiers.Email.Enabled {
		engine.RegisterNotifier("email", notifier.NewEmail(notifier.EmailConfig{
			Host:     cfg.Notifiers.Email.Host,
			Port:     cfg.Notifiers.Email.Port,
			Username: cfg.Notifiers.Email.Username,
			Password: cfg.Notifiers.Email.Password,
			From:     cfg.Notifiers.Email.From,
			To:       cfg.Notifiers.Email.To,
			UseTLS:   cfg.Notifiers.Email.UseTLS,
		}, notifier.WithEmailLogger(l)))
	}
	return engine
}

// ProvideObservationProcessor creates the backend-routing processor.
func ProvideObservationProcessor(
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	stream *analytics.StreamProcessor,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.ObservationProcessor {
	proc := usecase.NewObservationProcessor(pub, store, m, stream, cfg.Backend.Type)
	proc.SetLogger(l)
	return proc
}

// ProvideTickCollector creates the collector with the realtime pipeline in front.
func ProvideTickCollector(
	stream repository.MarketStream,
	processor *usecase.ObservationProcessor,
	m repository.Metrics,
) *usecase.TickCollector {
	pipe := mid.NewRealtimePipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTickCollector(stream, processor, m, pipe)
}

// ProvideKafkaTicksHandler registers the handler for the ticks topic.
func ProvideKafkaTicksHandler(store repository.Storage, m repository.Metrics, stream *analytics.StreamProcessor, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, store, m, stream)
}

// ProvideCacheService creates the shared cache, Redis-backed when enabled.
func ProvideCacheService(cfg *config.Config, l *logger.Logger) pkgcache.Service {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache()
	}
	host, port := splitAddr(cfg.Redis.Addr)
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		l.Warn("redis cache unavailable, using memory cache", logger.Error(err))
		return pkgcache.NewMemoryCache()
	}
	return pkgcache.NewLayeredCache(c)
}

func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideEvaluationUseCase wires the evaluation cycle.
func ProvideEvaluationUseCase(
	store repository.Storage,
	c pkgcache.Service,
	gen *analytics.SignalGenerator,
	scorer *analytics.RiskScorer,
	engine *alerts.Engine,
	detector *analytics.AnomalyDetector,
	m repository.Metrics,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.EvaluationUseCase {
	specs := make([]usecase.IndicatorSpec, 0, len(cfg.Indicators))
	for _, ind := range cfg.Indicators {
		specs = append(specs, usecase.IndicatorSpec{
			Key:      ind.Key,
			Symbol:   ind.Symbol,
			Mode:     ind.Mode,
			Lookback: ind.Lookback,
		})
	}
	opts := []usecase.EvaluationOption{
		usecase.WithIndicators(specs),
		usecase.WithEvaluationLogger(l),
	}
	if cfg.Features.Symbol != "" {
		opts = append(opts, usecase.WithFeatureSymbol(cfg.Features.Symbol, cfg.Features.Lookback))
	}
	return usecase.NewEvaluationUseCase(store, c, gen, scorer, engine, detector, m, opts...)
}

// ProvideRedisQueue creates the job queue when Redis is enabled, registering
// the evaluation and cleanup jobs. Returns nil when Redis is disabled; the
// scheduler is skipped in that case.
func ProvideRedisQueue(cfg *config.Config, eval *usecase.EvaluationUseCase, store repository.Storage, l *logger.Logger) *queue.RedisQueue {
	if !cfg.Redis.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, client, queue.ModeProducerConsumer)
	q.RegisterJobs([]queue.Job{
		usecase.NewEvaluationJob(eval, l),
		usecase.NewCleanupJob(store, cfg.Scheduler.RetentionDays, l),
	})
	return q
}

// ProvideScheduler creates the periodic job scheduler. Nil when the queue is
// not available.
func ProvideScheduler(q *queue.RedisQueue, cfg *config.Config, l *logger.Logger) *usecase.Scheduler {
	if q == nil {
		return nil
	}
	return usecase.NewScheduler(q,
		usecase.WithSchedulerLogger(l),
		usecase.WithSchedulerConfig(usecase.SchedulerConfig{
			RealtimeInterval: cfg.Scheduler.RealtimeInterval,
			DailyAt:          cfg.Scheduler.DailyAt,
			WeeklyDay:        cfg.WeekdayOrDefault(),
			CleanupAt:        cfg.Scheduler.CleanupAt,
			RetentionDays:    cfg.Scheduler.RetentionDays,
		}),
	)
}

// ProvideHTTPHandler creates the Echo API handler with a response byte cache,
// Redis-backed when enabled.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *logger.Logger,
	eval *usecase.EvaluationUseCase,
	engine *alerts.Engine,
	stream *analytics.StreamProcessor,
) *api.PipelineEchoHandler {
	h := api.NewPipelineEchoHandler(l, eval, engine, stream)
	if cfg.Redis.Enabled {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	chClient *pkgch.Client,
	handler *api.PipelineEchoHandler,
	engine *alerts.Engine,
	sched *usecase.Scheduler,
	q *queue.RedisQueue,
) *server.App {
	app := server.New(cfg, l, collector, consumer, kh, chClient, handler, engine, sched, q)
	app.Proc = collector.Processor()
	return app
}
