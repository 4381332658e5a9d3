package device

import (
	"context"
	"testing"
	"time"
)

func TestStateHistory_RecordAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	for i, state := range []State{
		{"is_on": false},
		{"is_on": true, "brightness_percent": float64(50)},
		{"is_on": true, "brightness_percent": float64(100)},
	} {
		source := StateHistorySourceShadow
		if i == 1 {
			source = StateHistorySourceCommand
		}
		if err := repo.RecordStateChange(ctx, "rest-abc", state, source); err != nil {
			t.Fatalf("RecordStateChange failed: %v", err)
		}
	}

	entries, err := repo.GetHistory(ctx, "rest-abc", 10)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	// Newest first
	if entries[0].State["brightness_percent"] != float64(100) {
		t.Errorf("newest entry = %v", entries[0].State)
	}
	if entries[1].Source != StateHistorySourceCommand {
		t.Errorf("source = %q", entries[1].Source)
	}
	if entries[0].RecordedAt.IsZero() {
		t.Error("recorded_at not parsed")
	}
}

func TestStateHistory_LimitClamped(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.RecordStateChange(ctx, "rest-abc", State{"i": float64(i)}, ""); err != nil {
			t.Fatalf("RecordStateChange failed: %v", err)
		}
	}

	entries, err := repo.GetHistory(ctx, "rest-abc", 2)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}

	// Empty source defaults to shadow
	if entries[0].Source != StateHistorySourceShadow {
		t.Errorf("source = %q", entries[0].Source)
	}
}

func TestStateHistory_RequiresDeviceID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)

	if err := repo.RecordStateChange(context.Background(), "", State{}, ""); err == nil {
		t.Error("expected error for empty device id")
	}
	if _, err := repo.GetHistory(context.Background(), "", 10); err == nil {
		t.Error("expected error for empty device id")
	}
}

func TestStateHistory_Prune(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	if err := repo.RecordStateChange(ctx, "rest-abc", State{"is_on": true}, ""); err != nil {
		t.Fatalf("RecordStateChange failed: %v", err)
	}

	// Nothing older than an hour yet.
	deleted, err := repo.PruneHistory(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted %d rows, want 0", deleted)
	}

	if _, err := repo.PruneHistory(ctx, 0); err == nil {
		t.Error("expected error for non-positive retention")
	}
}
