package events

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the fleet_events table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE fleet_events (
			id            TEXT PRIMARY KEY,
			kind          TEXT NOT NULL,
			device_id     TEXT,
			trajectory_id INTEGER,
			details       TEXT,
			created_at    TEXT NOT NULL
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

func TestSQLiteRepository_RecordGeneratesID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	event := &Event{Kind: KindDeviceOnline, DeviceID: "rover-01"}
	if err := repo.Record(ctx, event); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if !strings.HasPrefix(event.ID, "evt-") {
		t.Errorf("ID = %q, want evt- prefix", event.ID)
	}
	if event.CreatedAt.IsZero() {
		t.Error("CreatedAt not filled in")
	}
}

func TestSQLiteRepository_ListFilters(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	trajID := int64(7)
	seed := []*Event{
		{Kind: KindDeviceOnline, DeviceID: "rover-01"},
		{Kind: KindDeviceOffline, DeviceID: "rover-01"},
		{Kind: KindTrajectoryCompleted, DeviceID: "rover-02", TrajectoryID: &trajID,
			Details: map[string]any{"duration": 11}},
	}
	for _, e := range seed {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	t.Run("no filter returns all", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 3 {
			t.Errorf("Total = %d, want 3", result.Total)
		}
		if len(result.Events) != 3 {
			t.Errorf("len(Events) = %d, want 3", len(result.Events))
		}
	})

	t.Run("filter by device", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{DeviceID: "rover-01"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 2 {
			t.Errorf("Total = %d, want 2", result.Total)
		}
	})

	t.Run("filter by kind round-trips details", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{Kind: KindTrajectoryCompleted})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(result.Events) != 1 {
			t.Fatalf("len(Events) = %d, want 1", len(result.Events))
		}
		got := result.Events[0]
		if got.TrajectoryID == nil || *got.TrajectoryID != 7 {
			t.Errorf("TrajectoryID = %v, want 7", got.TrajectoryID)
		}
		if got.Details["duration"] != float64(11) {
			t.Errorf("Details[duration] = %v, want 11", got.Details["duration"])
		}
	})

	t.Run("pagination clamps limit", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{Limit: 1000})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Limit != maxPageSize {
			t.Errorf("Limit = %d, want %d", result.Limit, maxPageSize)
		}
	})

	t.Run("no matches returns empty slice", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{DeviceID: "rover-99"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Events == nil {
			t.Error("Events is nil, want empty slice")
		}
		if result.Total != 0 {
			t.Errorf("Total = %d, want 0", result.Total)
		}
	})
}
