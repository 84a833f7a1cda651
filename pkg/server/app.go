package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FlowSentry/internal/handler/api"
	"FlowSentry/internal/services/alerts"
	"FlowSentry/internal/usecase"
	pkgch "FlowSentry/pkg/clickhouse"
	"FlowSentry/pkg/config"
	xhttp "FlowSentry/pkg/http"
	pkgkafka "FlowSentry/pkg/kafka"
	applogger "FlowSentry/pkg/logger"
	"FlowSentry/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	collector  *usecase.TickCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	handler    *api.PipelineEchoHandler
	engine     *alerts.Engine
	sched      *usecase.Scheduler
	queue      *queue.RedisQueue
	httpServer *xhttp.Server

	// Proc is closed last on shutdown so buffered writes drain first.
	Proc *usecase.ObservationProcessor
}

// New creates a new App instance with all dependencies. Consumer, scheduler
// and queue may be nil when the matching backend is disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	handler *api.PipelineEchoHandler,
	engine *alerts.Engine,
	sched *usecase.Scheduler,
	q *queue.RedisQueue,
) *App {
	return &App{
		cfg:       cfg,
		logger:    l,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		handler:   handler,
		engine:    engine,
		sched:     sched,
		queue:     q,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger
	if l == nil {
		var err error
		l, err = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			return err
		}
		a.logger = l
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start collector
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()
	l.Info("collector started", applogger.Strings("symbols", a.cfg.Collector.Symbols))

	// Start consumer if the kafka backend is configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start job queue workers and the scheduler that feeds them
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
		} else {
			l.Info("job queue started")
		}
	}
	if a.sched != nil {
		a.sched.Start(ctx)
		l.Info("scheduler started",
			applogger.Duration("realtime_interval", a.cfg.Scheduler.RealtimeInterval),
			applogger.String("daily_at", a.cfg.Scheduler.DailyAt))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops services in reverse order: triggers first, then consumers,
// then the stores they write to.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	if a.sched != nil {
		a.sched.Stop()
	}

	// Stop collector (pipeline + stream)
	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer before closing the storage it writes to
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	// Drain in-flight notifications
	if a.engine != nil {
		a.engine.Flush()
	}

	// Close processor resources (publisher/storage)
	if a.Proc != nil {
		a.Proc.Close()
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
