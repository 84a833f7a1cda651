package service

import (
	"context"

	"FlowSentry/internal/domain/models"
)

// SignalGenerator evaluates a market-state snapshot against scenario rules.
type SignalGenerator interface {
	Generate(state models.MarketState) []models.Signal
}

// RiskScorer computes one composite risk score from a market-state snapshot.
type RiskScorer interface {
	Score(state models.MarketState) models.RiskScore
}

// Notifier delivers a fully-formed alert to one channel, best-effort.
// Failure is reported, never retried by the caller.
type Notifier interface {
	Send(ctx context.Context, alert *models.Alert) error
}
