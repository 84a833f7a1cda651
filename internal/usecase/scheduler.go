package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"FlowSentry/pkg/logger"
	"FlowSentry/pkg/queue"
)

// SchedulerConfig declares the periodic job cadence. DailyAt and CleanupAt
// are wall-clock "HH:MM" strings; WeeklyDay is the weekday for the weekly
// run at 00:00.
type SchedulerConfig struct {
	RealtimeInterval time.Duration
	DailyAt          string
	WeeklyDay        time.Weekday
	CleanupAt        string
	RetentionDays    int
}

func defaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RealtimeInterval: time.Minute,
		DailyAt:          "16:30",
		WeeklyDay:        time.Saturday,
		CleanupAt:        "03:00",
		RetentionDays:    30,
	}
}

// Scheduler enqueues periodic jobs; execution happens in queue workers so a
// slow cycle never delays the next trigger.
type Scheduler struct {
	cfg    SchedulerConfig
	queue  queue.QueueService
	logger *logger.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

type SchedulerOption func(*Scheduler)

// WithSchedulerConfig overrides the cadence.
func WithSchedulerConfig(cfg SchedulerConfig) SchedulerOption {
	return func(s *Scheduler) {
		if cfg.RealtimeInterval > 0 {
			s.cfg.RealtimeInterval = cfg.RealtimeInterval
		}
		if cfg.DailyAt != "" {
			s.cfg.DailyAt = cfg.DailyAt
		}
		if cfg.CleanupAt != "" {
			s.cfg.CleanupAt = cfg.CleanupAt
		}
		if cfg.RetentionDays > 0 {
			s.cfg.RetentionDays = cfg.RetentionDays
		}
		s.cfg.WeeklyDay = cfg.WeeklyDay
	}
}

// WithSchedulerLogger attaches a structured logger.
func WithSchedulerLogger(l *logger.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithSchedulerClock overrides the time source (tests).
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(q queue.QueueService, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cfg:   defaultSchedulerConfig(),
		queue: q,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the trigger loops. Idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(4)
	go s.realtimeLoop(ctx)
	go s.dailyLoop(ctx, s.cfg.DailyAt, MsgEvaluation, nil)
	go s.dailyLoop(ctx, s.cfg.CleanupAt, MsgCleanup, CleanupPayload{RetentionDays: s.cfg.RetentionDays})
	go s.weeklyLoop(ctx)

	if s.logger != nil {
		s.logger.Info("scheduler started",
			logger.Duration("realtime_interval", s.cfg.RealtimeInterval),
			logger.String("daily_at", s.cfg.DailyAt),
			logger.String("cleanup_at", s.cfg.CleanupAt))
	}
}

// Stop halts the trigger loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	if s.logger != nil {
		s.logger.Info("scheduler stopped")
	}
}

func (s *Scheduler) realtimeLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.RealtimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publish(ctx, MsgEvaluation, nil)
		}
	}
}

// dailyLoop fires once per day at the given wall-clock time.
func (s *Scheduler) dailyLoop(ctx context.Context, at string, msgType string, payload interface{}) {
	defer s.wg.Done()
	hour, minute, err := parseClock(at)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("invalid schedule time", logger.String("at", at), logger.Error(err))
		}
		return
	}
	for {
		next := s.nextOccurrence(hour, minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			s.publish(ctx, msgType, payload)
		}
	}
}

// weeklyLoop fires a full evaluation at 00:00 on the configured weekday.
func (s *Scheduler) weeklyLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		next := s.nextWeekday(s.cfg.WeeklyDay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			s.publish(ctx, MsgEvaluation, nil)
		}
	}
}

func (s *Scheduler) nextWeekday(day time.Weekday) time.Time {
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for !next.After(now) || next.Weekday() != day {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) nextOccurrence(hour, minute int) time.Time {
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) publish(ctx context.Context, msgType string, payload interface{}) {
	if err := s.queue.PublishMessage(ctx, msgType, payload); err != nil {
		if s.logger != nil {
			s.logger.Error("schedule publish", logger.String("type", msgType), logger.Error(err))
		}
		return
	}
	if s.logger != nil {
		s.logger.Debug("job scheduled", logger.String("type", msgType))
	}
}

func parseClock(at string) (int, int, error) {
	parts := strings.SplitN(at, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", at)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", at)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", at)
	}
	return hour, minute, nil
}
