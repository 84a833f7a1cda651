package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"FlowSentry/internal/domain/models"
	"FlowSentry/internal/domain/repository"
	pkgch "FlowSentry/pkg/clickhouse"
	applogger "FlowSentry/pkg/logger"
)

const (
	tableObservations = "observations"
	tableSignals      = "signals"
	tableAlerts       = "alerts"
	tablePredictions  = "predictions"
)

// ClickHouseStorage implements Storage for ClickHouse. All writes are
// append-only; retention is applied by Cleanup.
type ClickHouseStorage struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewClickHouseStorage creates ClickHouse storage.
func NewClickHouseStorage(ch *pkgch.Client) repository.Storage {
	return &ClickHouseStorage{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *ClickHouseStorage) SetLogger(l *applogger.Logger) { s.l = l }

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ` + tableObservations + ` (
		ts DateTime,
		symbol String,
		value Float64,
		volume Float64,
		bid Float64,
		ask Float64
	) ENGINE = MergeTree() ORDER BY (symbol, ts)`,
	`CREATE TABLE IF NOT EXISTS ` + tableSignals + ` (
		ts DateTime,
		scenario String,
		severity String,
		confidence Float64,
		triggers Array(String),
		recommendation String,
		active UInt8,
		metadata String
	) ENGINE = MergeTree() ORDER BY (scenario, ts)`,
	`CREATE TABLE IF NOT EXISTS ` + tableAlerts + ` (
		id String,
		ts DateTime,
		severity String,
		scenario String,
		confidence Float64,
		message String,
		triggers Array(String),
		recommendation String
	) ENGINE = MergeTree() ORDER BY ts`,
	`CREATE TABLE IF NOT EXISTS ` + tablePredictions + ` (
		id String,
		ts DateTime,
		model_type String,
		direction String,
		confidence Float64,
		metadata String
	) ENGINE = MergeTree() ORDER BY (model_type, ts)`,
}

// Init ensures all tables exist (idempotent).
func (s *ClickHouseStorage) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) StoreObservation(ctx context.Context, o *models.Observation) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, value, volume, bid, ask) VALUES (?, ?, ?, ?, ?, ?)", tableObservations)
	_, err := s.db.ExecContext(ctx, q,
		time.Unix(o.Timestamp, 0),
		o.Symbol,
		o.Value,
		o.Volume,
		o.Bid,
		o.Ask,
	)
	return err
}

func (s *ClickHouseStorage) StoreObservationBatch(ctx context.Context, obs []*models.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	// Batch insert using VALUES multi-row to reduce round-trips.
	// Chunk size tuned to 2000 rows per batch.
	const chunkSize = 2000
	for start := 0; start < len(obs); start += chunkSize {
		end := start + chunkSize
		if end > len(obs) {
			end = len(obs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, o := range obs[start:end] {
			if o == nil || o.Symbol == "" || o.Timestamp == 0 {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args,
				time.Unix(o.Timestamp, 0),
				o.Symbol,
				o.Value,
				o.Volume,
				o.Bid,
				o.Ask,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, value, volume, bid, ask) VALUES %s", tableObservations, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseStorage) QueryObservations(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Observation, error) {
	q := fmt.Sprintf("SELECT symbol, ts, value, volume, bid, ask FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", tableObservations)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query observations",
				applogger.String("symbol", symbol),
				applogger.Error(err))
		}
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []*models.Observation
	for rows.Next() {
		var o models.Observation
		var ts time.Time
		if err := rows.Scan(&o.Symbol, &ts, &o.Value, &o.Volume, &o.Bid, &o.Ask); err != nil {
			return nil, err
		}
		o.Timestamp = ts.Unix()
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (s *ClickHouseStorage) StoreSignal(ctx context.Context, sig *models.Signal, active bool) error {
	meta, err := marshalMeta(sig.Metadata)
	if err != nil {
		return err
	}
	activeFlag := uint8(0)
	if active {
		activeFlag = 1
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, scenario, severity, confidence, triggers, recommendation, active, metadata) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", tableSignals)
	_, err = s.db.ExecContext(ctx, q,
		sig.Timestamp,
		sig.Scenario,
		sig.Severity,
		sig.Confidence,
		sig.Triggers,
		sig.Recommendation,
		activeFlag,
		meta,
	)
	return err
}

func (s *ClickHouseStorage) ActiveSignals(ctx context.Context, severity string, limit int) ([]*models.Signal, error) {
	q := fmt.Sprintf("SELECT ts, scenario, severity, confidence, triggers, recommendation, metadata FROM %s WHERE active = 1", tableSignals)
	args := make([]interface{}, 0, 2)
	if severity != "" {
		q += " AND severity = ?"
		args = append(args, severity)
	}
	q += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("active signals: %w", err)
	}
	defer rows.Close()

	var out []*models.Signal
	for rows.Next() {
		var sig models.Signal
		var meta string
		if err := rows.Scan(&sig.Timestamp, &sig.Scenario, &sig.Severity, &sig.Confidence, &sig.Triggers, &sig.Recommendation, &meta); err != nil {
			return nil, err
		}
		if meta != "" {
			_ = json.Unmarshal([]byte(meta), &sig.Metadata)
		}
		out = append(out, &sig)
	}
	return out, rows.Err()
}

func (s *ClickHouseStorage) StoreAlert(ctx context.Context, a *models.Alert) error {
	q := fmt.Sprintf("INSERT INTO %s (id, ts, severity, scenario, confidence, message, triggers, recommendation) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", tableAlerts)
	_, err := s.db.ExecContext(ctx, q,
		a.ID,
		a.Timestamp,
		a.SeverityName,
		a.Scenario,
		a.Confidence,
		a.Message,
		a.Triggers,
		a.Recommendation,
	)
	return err
}

func (s *ClickHouseStorage) SavePrediction(ctx context.Context, p *models.Prediction) error {
	meta, err := marshalMeta(p.Metadata)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (id, ts, model_type, direction, confidence, metadata) VALUES (?, ?, ?, ?, ?, ?)", tablePredictions)
	_, err = s.db.ExecContext(ctx, q,
		p.ID,
		time.Unix(p.CreatedAt, 0),
		p.ModelType,
		p.Direction,
		p.Confidence,
		meta,
	)
	return err
}

func (s *ClickHouseStorage) LatestPrediction(ctx context.Context, modelType string) (*models.Prediction, error) {
	q := fmt.Sprintf("SELECT id, ts, model_type, direction, confidence, metadata FROM %s WHERE model_type = ? ORDER BY ts DESC LIMIT 1", tablePredictions)
	row := s.db.QueryRowContext(ctx, q, modelType)

	var p models.Prediction
	var ts time.Time
	var meta string
	if err := row.Scan(&p.ID, &ts, &p.ModelType, &p.Direction, &p.Confidence, &meta); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest prediction: %w", err)
	}
	p.CreatedAt = ts.Unix()
	if meta != "" {
		_ = json.Unmarshal([]byte(meta), &p.Metadata)
	}
	return &p, nil
}

// Cleanup deletes rows older than the cutoff from every table and returns
// the per-table count of rows removed. Counts are taken before the delete;
// ClickHouse mutations apply asynchronously.
func (s *ClickHouseStorage) Cleanup(ctx context.Context, olderThan time.Time) (map[string]int, error) {
	tables := []string{tableObservations, tableSignals, tableAlerts, tablePredictions}
	deleted := make(map[string]int, len(tables))

	for _, table := range tables {
		var n int
		countQ := fmt.Sprintf("SELECT count() FROM %s WHERE ts < ?", table)
		if err := s.db.QueryRowContext(ctx, countQ, olderThan).Scan(&n); err != nil {
			return deleted, fmt.Errorf("cleanup count %s: %w", table, err)
		}
		if n == 0 {
			deleted[table] = 0
			continue
		}
		delQ := fmt.Sprintf("ALTER TABLE %s DELETE WHERE ts < ?", table)
		if _, err := s.db.ExecContext(ctx, delQ, olderThan); err != nil {
			return deleted, fmt.Errorf("cleanup delete %s: %w", table, err)
		}
		deleted[table] = n
		if s.l != nil {
			s.l.Info("retention cleanup",
				applogger.String("table", table),
				applogger.Int("deleted", n))
		}
	}
	return deleted, nil
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // pool managed by pkg client
}

func marshalMeta(meta map[string]interface{}) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}
