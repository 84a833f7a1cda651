package usecase

import (
	"context"
	"encoding/json"
	"time"

	"FlowSentry/internal/domain/models"
	domrepo "FlowSentry/internal/domain/repository"
	"FlowSentry/internal/services/analytics"
	pkgkafka "FlowSentry/pkg/kafka"
)

// KafkaTicksHandler consumes observation messages and writes to storage,
// feeding each row through the rolling-window stream processor.
type KafkaTicksHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
	stream  *analytics.StreamProcessor
}

func NewKafkaTicksHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics, stream *analytics.StreamProcessor) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, storage: storage, metrics: metrics, stream: stream}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, ts, value, volume, bid, ask}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"ts"`
		Value  float64 `json:"value"`
		Volume float64 `json:"volume"`
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	obs := &models.Observation{
		Symbol:    m.Symbol,
		Timestamp: m.T,
		Value:     m.Value,
		Volume:    m.Volume,
		Bid:       m.Bid,
		Ask:       m.Ask,
	}

	start := time.Now()
	err := h.storage.StoreObservation(ctx, obs)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", m.Symbol)

	if h.stream != nil {
		h.stream.ProcessTick(obs.Symbol, obs.Value, obs.Time())
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
