package trajectory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the trajectories table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE trajectories (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id         TEXT    NOT NULL,
			commands_sent     TEXT    NOT NULL,
			commands_executed TEXT,
			status            INTEGER,
			duration          INTEGER NOT NULL DEFAULT 0,
			created_at        TEXT    NOT NULL,
			updated_at        TEXT    NOT NULL
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

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	tr := &Trajectory{DeviceID: "rover-01", CommandsSent: "a1000d"}
	if err := repo.Create(ctx, tr); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tr.ID == 0 {
		t.Fatal("Create() did not fill in ID")
	}

	got, err := repo.GetByID(ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.DeviceID != "rover-01" {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, "rover-01")
	}
	if got.CommandsSent != "a1000d" {
		t.Errorf("CommandsSent = %q, want %q", got.CommandsSent, "a1000d")
	}
	if got.Status != nil {
		t.Errorf("Status = %v, want nil (in progress)", *got.Status)
	}
	if got.CommandsExecuted != nil {
		t.Errorf("CommandsExecuted = %v, want nil", *got.CommandsExecuted)
	}
}

func TestSQLiteRepository_GetByIDNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_ListNewestFirst(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, cmds := range []string{"a0001", "a0002", "a0003"} {
		if err := repo.Create(ctx, &Trajectory{DeviceID: "rover-01", CommandsSent: cmds}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() returned %d trajectories, want 3", len(list))
	}
	if list[0].CommandsSent != "a0003" {
		t.Errorf("first entry CommandsSent = %q, want newest %q", list[0].CommandsSent, "a0003")
	}
}

func TestSQLiteRepository_Complete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	tr := &Trajectory{DeviceID: "rover-01", CommandsSent: "a1000d"}
	if err := repo.Create(ctx, tr); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ok, err := repo.Complete(ctx, tr.ID, "a1000d", 11)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !ok {
		t.Fatal("Complete() = false, want true for in-progress trajectory")
	}

	got, err := repo.GetByID(ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status == nil || !*got.Status {
		t.Errorf("Status = %v, want completed", got.Status)
	}
	if got.CommandsExecuted == nil || *got.CommandsExecuted != "a1000d" {
		t.Errorf("CommandsExecuted = %v, want a1000d", got.CommandsExecuted)
	}
	if got.Duration != 11 {
		t.Errorf("Duration = %d, want 11", got.Duration)
	}

	// Second complete loses the compare-and-set.
	ok, err = repo.Complete(ctx, tr.ID, "a1000d", 11)
	if err != nil {
		t.Fatalf("second Complete() error = %v", err)
	}
	if ok {
		t.Error("second Complete() = true, want false for terminal trajectory")
	}
}

func TestSQLiteRepository_Cancel(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	tr := &Trajectory{DeviceID: "rover-01", CommandsSent: "d"}
	if err := repo.Create(ctx, tr); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ok, err := repo.Cancel(ctx, tr.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if !ok {
		t.Fatal("Cancel() = false, want true for in-progress trajectory")
	}

	got, err := repo.GetByID(ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status == nil || *got.Status {
		t.Errorf("Status = %v, want cancelled", got.Status)
	}

	// Cancelling again, or completing a cancelled trajectory, is a no-op.
	ok, err = repo.Cancel(ctx, tr.ID)
	if err != nil {
		t.Fatalf("second Cancel() error = %v", err)
	}
	if ok {
		t.Error("second Cancel() = true, want false for terminal trajectory")
	}

	ok, err = repo.Complete(ctx, tr.ID, "d", 1)
	if err != nil {
		t.Fatalf("Complete() after Cancel() error = %v", err)
	}
	if ok {
		t.Error("Complete() after Cancel() = true, want false")
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	tr := &Trajectory{DeviceID: "rover-01", CommandsSent: "e"}
	if err := repo.Create(ctx, tr); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, tr.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}

	if err := repo.Delete(ctx, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
