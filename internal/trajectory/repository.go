package trajectory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for trajectory persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Create inserts a new in-progress trajectory and fills in its ID.
	Create(ctx context.Context, t *Trajectory) error

	// GetByID retrieves a trajectory by id.
	// Returns ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id int64) (*Trajectory, error)

	// List retrieves all trajectories, newest first.
	List(ctx context.Context) ([]Trajectory, error)

	// Delete removes a trajectory regardless of lifecycle state.
	// Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id int64) error

	// Complete atomically moves an in-progress trajectory to completed,
	// recording the executed commands and duration. Returns false without
	// error if the trajectory was already terminal.
	Complete(ctx context.Context, id int64, executed string, duration int64) (bool, error)

	// Cancel atomically moves an in-progress trajectory to cancelled.
	// Returns false without error if the trajectory was already terminal.
	Cancel(ctx context.Context, id int64) (bool, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new in-progress trajectory and fills in its ID.
func (r *SQLiteRepository) Create(ctx context.Context, t *Trajectory) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO trajectories (device_id, commands_sent, commands_executed, status, duration, created_at, updated_at)
		VALUES (?, ?, NULL, NULL, 0, ?, ?)`,
		t.DeviceID, t.CommandsSent, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting trajectory: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted trajectory id: %w", err)
	}
	t.ID = id
	return nil
}

// GetByID retrieves a trajectory by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Trajectory, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, device_id, commands_sent, commands_executed, status, duration, created_at, updated_at
		FROM trajectories
		WHERE id = ?`, id)

	t, err := scanTrajectory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying trajectory by id: %w", err)
	}
	return t, nil
}

// List retrieves all trajectories, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Trajectory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, commands_sent, commands_executed, status, duration, created_at, updated_at
		FROM trajectories
		ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing trajectories: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var trajectories []Trajectory
	for rows.Next() {
		t, err := scanTrajectory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trajectory row: %w", err)
		}
		trajectories = append(trajectories, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trajectory rows: %w", err)
	}
	return trajectories, nil
}

// Delete removes a trajectory regardless of lifecycle state.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trajectories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting trajectory: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Complete atomically moves an in-progress trajectory to completed.
//
// The WHERE status IS NULL guard makes the terminal transition a
// compare-and-set at the database level: a trajectory that has already
// been completed or cancelled is left untouched and false is returned.
func (r *SQLiteRepository) Complete(ctx context.Context, id int64, executed string, duration int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE trajectories
		SET commands_executed = ?, duration = ?, status = 1, updated_at = ?
		WHERE id = ? AND status IS NULL`,
		executed, duration, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return false, fmt.Errorf("completing trajectory: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking complete result: %w", err)
	}
	return affected == 1, nil
}

// Cancel atomically moves an in-progress trajectory to cancelled.
// Same compare-and-set guard as Complete.
func (r *SQLiteRepository) Cancel(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE trajectories
		SET status = 0, updated_at = ?
		WHERE id = ? AND status IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return false, fmt.Errorf("cancelling trajectory: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking cancel result: %w", err)
	}
	return affected == 1, nil
}

// scanner abstracts sql.Row and sql.Rows for scanTrajectory.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrajectory scans a trajectory from a row.
func scanTrajectory(row scanner) (*Trajectory, error) {
	var (
		t         Trajectory
		executed  sql.NullString
		status    sql.NullBool
		createdAt string
		updatedAt string
	)

	if err := row.Scan(&t.ID, &t.DeviceID, &t.CommandsSent, &executed, &status, &t.Duration, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if executed.Valid {
		t.CommandsExecuted = &executed.String
	}
	if status.Valid {
		t.Status = &status.Bool
	}

	var err error
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}
