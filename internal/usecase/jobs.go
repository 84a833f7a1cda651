package usecase

import (
	"context"
	"time"

	domrepo "FlowSentry/internal/domain/repository"
	"FlowSentry/pkg/logger"
	"FlowSentry/pkg/queue"
)

// Queue message types.
const (
	MsgEvaluation = "evaluation"
	MsgCleanup    = "retention_cleanup"
)

// EvaluationJob runs one evaluation cycle when dequeued.
type EvaluationJob struct {
	uc  *EvaluationUseCase
	log *logger.Logger
}

func NewEvaluationJob(uc *EvaluationUseCase, log *logger.Logger) *EvaluationJob {
	return &EvaluationJob{uc: uc, log: log}
}

func (j *EvaluationJob) Name() string { return "evaluation_job" }
func (j *EvaluationJob) Type() string { return MsgEvaluation }

func (j *EvaluationJob) Handle(ctx context.Context, _ interface{}) error {
	res, err := j.uc.Evaluate(ctx)
	if err != nil {
		return err
	}
	if j.log != nil && len(res.Errors) > 0 {
		j.log.Warn("evaluation with degraded indicators", logger.Int("failed", len(res.Errors)))
	}
	return nil
}

// CleanupPayload carries the retention override, zero means the default.
type CleanupPayload struct {
	RetentionDays int `json:"retention_days"`
}

// CleanupJob applies the retention window to storage when dequeued.
type CleanupJob struct {
	storage       domrepo.Storage
	retentionDays int
	log           *logger.Logger
	now           func() time.Time
}

func NewCleanupJob(storage domrepo.Storage, retentionDays int, log *logger.Logger) *CleanupJob {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &CleanupJob{storage: storage, retentionDays: retentionDays, log: log, now: time.Now}
}

func (j *CleanupJob) Name() string { return "cleanup_job" }
func (j *CleanupJob) Type() string { return MsgCleanup }

func (j *CleanupJob) Handle(ctx context.Context, payload interface{}) error {
	days := j.retentionDays
	if payload != nil {
		if p, err := queue.ParsePayload[CleanupPayload](payload); err == nil && p.RetentionDays > 0 {
			days = p.RetentionDays
		}
	}
	cutoff := j.now().AddDate(0, 0, -days)

	deleted, err := j.storage.Cleanup(ctx, cutoff)
	if err != nil {
		return err
	}
	if j.log != nil {
		total := 0
		for _, n := range deleted {
			total += n
		}
		j.log.Info("retention cleanup finished",
			logger.Int("tables", len(deleted)),
			logger.Int("deleted_total", total),
			logger.Int("retention_days", days))
	}
	return nil
}
