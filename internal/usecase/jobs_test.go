package usecase

import (
	"context"
	"testing"
	"time"
)

func TestCleanupJobDefaultRetention(t *testing.T) {
	store := newFakeStorage()
	j := NewCleanupJob(store, 0, nil)
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	if err := j.Handle(context.Background(), nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if want := now.AddDate(0, 0, -30); !store.cleanupAt.Equal(want) {
		t.Fatalf("cutoff = %v, want 30-day default %v", store.cleanupAt, want)
	}
}

func TestCleanupJobPayloadOverride(t *testing.T) {
	store := newFakeStorage()
	j := NewCleanupJob(store, 30, nil)
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	payload := map[string]interface{}{"retention_days": 7}
	if err := j.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if want := now.AddDate(0, 0, -7); !store.cleanupAt.Equal(want) {
		t.Fatalf("cutoff = %v, want payload override %v", store.cleanupAt, want)
	}
}
