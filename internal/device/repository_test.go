package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			product TEXT NOT NULL,
			generation TEXT NOT NULL,
			mac TEXT NOT NULL DEFAULT '',
			firmware_version TEXT NOT NULL DEFAULT '',
			capabilities TEXT NOT NULL DEFAULT '[]',
			state TEXT NOT NULL DEFAULT '{}',
			health_status TEXT NOT NULL DEFAULT 'unknown',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			last_seen_at TEXT
		);
		CREATE UNIQUE INDEX idx_devices_slug ON devices(slug);
		CREATE TABLE device_state_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			state TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT 'shadow',
			recorded_at TEXT NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testDevice creates a device for testing.
func testDevice(id, name string) *Device {
	return &Device{
		ID:           id,
		Name:         name,
		Slug:         GenerateSlug(name),
		Product:      "restoreV4",
		Generation:   GenerationIoT,
		MAC:          "aa:bb:cc:dd:ee:ff",
		Capabilities: CapabilitiesForGeneration(GenerationIoT),
		State:        State{"is_on": false},
		HealthStatus: HealthStatusUnknown,
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("rest-abc", "Nursery Restore")
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "rest-abc")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Nursery Restore" || got.Slug != "nursery-restore" {
		t.Errorf("identity = %q/%q", got.Name, got.Slug)
	}
	if got.Product != "restoreV4" || got.Generation != GenerationIoT {
		t.Errorf("classification = %q/%q", got.Product, got.Generation)
	}
	if !got.HasCapability(CapColorRGBW) {
		t.Error("capabilities lost in round trip")
	}
	if got.State["is_on"] != false {
		t.Errorf("state = %v", got.State)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("rest-abc", "One")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := repo.Create(ctx, testDevice("rest-abc", "Two"))
	if !errors.Is(err, ErrDeviceExists) {
		t.Errorf("expected ErrDeviceExists, got %v", err)
	}
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetByID(context.Background(), "nope")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestSQLiteRepository_ListByProduct(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	legacy := testDevice("rest-legacy", "Old Restore")
	legacy.Product = "restore"
	legacy.Generation = GenerationLegacy

	for _, d := range []*Device{testDevice("rest-a", "A"), testDevice("rest-b", "B"), legacy} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List returned %d devices, want 3", len(all))
	}

	v4s, err := repo.ListByProduct(ctx, "restoreV4")
	if err != nil {
		t.Fatalf("ListByProduct failed: %v", err)
	}
	if len(v4s) != 2 {
		t.Errorf("ListByProduct returned %d devices, want 2", len(v4s))
	}
}

func TestSQLiteRepository_UpdateState_Merges(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("rest-abc", "Nursery")
	dev.State = State{"is_on": false, "red": float64(255)}
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.UpdateState(ctx, "rest-abc", State{"is_on": true}); err != nil {
		t.Fatalf("UpdateState failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "rest-abc")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.State["is_on"] != true {
		t.Errorf("is_on not updated: %v", got.State)
	}
	if got.State["red"] != float64(255) {
		t.Errorf("partial update wiped red: %v", got.State)
	}
}

func TestSQLiteRepository_UpdateState_Missing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	err := repo.UpdateState(context.Background(), "nope", State{"is_on": true})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestSQLiteRepository_UpdateHealth(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("rest-abc", "Nursery")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	seen := time.Now().UTC().Truncate(time.Second)
	if err := repo.UpdateHealth(ctx, "rest-abc", HealthStatusOnline, seen); err != nil {
		t.Fatalf("UpdateHealth failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "rest-abc")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.HealthStatus != HealthStatusOnline {
		t.Errorf("health = %q", got.HealthStatus)
	}
	if got.LastSeenAt == nil || !got.LastSeenAt.Equal(seen) {
		t.Errorf("last_seen_at = %v, want %v", got.LastSeenAt, seen)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("rest-abc", "Nursery")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Delete(ctx, "rest-abc"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, "rest-abc"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound on second delete, got %v", err)
	}
}
