package usecase

import (
	"context"
	"fmt"
	"time"

	"FlowSentry/internal/domain/models"
	drepo "FlowSentry/internal/domain/repository"
	"FlowSentry/internal/services/analytics"
	"FlowSentry/pkg/logger"
)

// ObservationProcessor routes observations to the configured backend and
// feeds the rolling-window stream processor.
type ObservationProcessor struct {
	pub      drepo.Publisher
	store    drepo.Storage
	metrics  drepo.Metrics
	stream   *analytics.StreamProcessor
	onSignal func(*models.ProcessedSignal)
	logger   *logger.Logger
	backend  string
}

// NewObservationProcessor creates a new ObservationProcessor instance.
func NewObservationProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	stream *analytics.StreamProcessor,
	backend string,
) *ObservationProcessor {
	return &ObservationProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		stream:  stream,
		backend: backend,
	}
}

// SetLogger injects a structured logger.
func (p *ObservationProcessor) SetLogger(l *logger.Logger) { p.logger = l }

// OnSignal registers a callback for stream-processor emissions.
func (p *ObservationProcessor) OnSignal(fn func(*models.ProcessedSignal)) { p.onSignal = fn }

// Process routes a single observation to the configured backend and runs it
// through the rolling window.
func (p *ObservationProcessor) Process(ctx context.Context, o *models.Observation) error {
	if o == nil {
		return fmt.Errorf("observation is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, o)
	case "clickhouse":
		err = p.store.StoreObservation(ctx, o)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process observation: %w", err)
	}

	p.metrics.RecordMessageSent(p.backend, o.Symbol)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	p.analyze(o)
	return nil
}

// ProcessBatch routes multiple observations in a batch.
func (p *ObservationProcessor) ProcessBatch(ctx context.Context, obs []*models.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, obs)
	case "clickhouse":
		err = p.store.StoreObservationBatch(ctx, obs)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, o := range obs {
		p.metrics.RecordMessageSent(p.backend, o.Symbol)
		p.analyze(o)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

func (p *ObservationProcessor) analyze(o *models.Observation) {
	if p.stream == nil {
		return
	}
	sig := p.stream.ProcessTick(o.Symbol, o.Value, o.Time())
	if sig == nil {
		return
	}
	if p.logger != nil {
		p.logger.Warn("stream anomaly",
			logger.String("symbol", sig.Symbol),
			logger.String("type", sig.SignalType),
			logger.Any("z_score", sig.ZScore),
			logger.Any("anomaly_score", sig.AnomalyScore))
	}
	if p.onSignal != nil {
		p.onSignal(sig)
	}
}

// Close closes underlying resources if available.
func (p *ObservationProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
