package repository

import (
	"context"
	"time"

	"FlowSentry/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Observation, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Publisher interface {
	Publish(ctx context.Context, o *models.Observation) error
	PublishBatch(ctx context.Context, obs []*models.Observation) error
	Close() error
}

// Storage is the append-only persistence contract the pipeline requires.
// Writes never mutate existing records; reads filter by symbol and time range
// with a result limit; Cleanup applies the retention window per table and
// returns per-table deleted counts.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreObservation(ctx context.Context, o *models.Observation) error
	StoreObservationBatch(ctx context.Context, obs []*models.Observation) error
	QueryObservations(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Observation, error)
	StoreSignal(ctx context.Context, s *models.Signal, active bool) error
	ActiveSignals(ctx context.Context, severity string, limit int) ([]*models.Signal, error)
	StoreAlert(ctx context.Context, a *models.Alert) error
	SavePrediction(ctx context.Context, p *models.Prediction) error
	LatestPrediction(ctx context.Context, modelType string) (*models.Prediction, error)
	Cleanup(ctx context.Context, olderThan time.Time) (map[string]int, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastValue(symbol string, value float64)
	RecordLatency(op string, seconds float64)
}
