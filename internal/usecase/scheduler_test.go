package usecase

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeQueue struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	f.mu.Lock()
	f.messages = append(f.messages, msgType)
	f.mu.Unlock()
	return nil
}

func (f *fakeQueue) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in         string
		hour, min  int
		shouldFail bool
	}{
		{in: "16:30", hour: 16, min: 30},
		{in: "00:00", hour: 0, min: 0},
		{in: "23:59", hour: 23, min: 59},
		{in: "24:00", shouldFail: true},
		{in: "12:60", shouldFail: true},
		{in: "noon", shouldFail: true},
		{in: "12", shouldFail: true},
		{in: "-1:00", shouldFail: true},
	}
	for _, tc := range cases {
		hour, min, err := parseClock(tc.in)
		if tc.shouldFail {
			if err == nil {
				t.Fatalf("parseClock(%q) must fail", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseClock(%q): %v", tc.in, err)
		}
		if hour != tc.hour || min != tc.min {
			t.Fatalf("parseClock(%q) = %d:%d, want %d:%d", tc.in, hour, min, tc.hour, tc.min)
		}
	}
}

func TestNextOccurrence(t *testing.T) {
	// friday 2025-03-14 10:00 UTC
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(&fakeQueue{}, WithSchedulerClock(func() time.Time { return now }))

	// later today
	next := s.nextOccurrence(16, 30)
	if want := time.Date(2025, 3, 14, 16, 30, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
	// already passed, rolls to tomorrow
	next = s.nextOccurrence(3, 0)
	if want := time.Date(2025, 3, 15, 3, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
	// exactly now rolls to tomorrow
	next = s.nextOccurrence(10, 0)
	if want := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextWeekday(t *testing.T) {
	// friday 2025-03-14 10:00 UTC
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(&fakeQueue{}, WithSchedulerClock(func() time.Time { return now }))

	// tomorrow
	next := s.nextWeekday(time.Saturday)
	if want := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next saturday = %v, want %v", next, want)
	}
	// same weekday skips to next week; today's midnight is already past
	next = s.nextWeekday(time.Friday)
	if want := time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next friday = %v, want %v", next, want)
	}
}

func TestSchedulerRealtimePublish(t *testing.T) {
	q := &fakeQueue{}
	s := NewScheduler(q, WithSchedulerConfig(SchedulerConfig{
		RealtimeInterval: 10 * time.Millisecond,
	}))

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for q.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("realtime loop never published, got %d", q.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	q.mu.Lock()
	first := q.messages[0]
	q.mu.Unlock()
	if first != MsgEvaluation {
		t.Fatalf("message type = %q, want %q", first, MsgEvaluation)
	}
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	s := NewScheduler(&fakeQueue{}, WithSchedulerConfig(SchedulerConfig{
		RealtimeInterval: time.Hour,
	}))
	s.Start(context.Background())
	s.Start(context.Background()) // no-op
	s.Stop()
	s.Stop() // no-op
}
