// Package events provides access to the fleet_events table for
// querying fleet activity history.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event kinds recorded by the controller.
const (
	KindTrajectoryCreated   = "trajectory.created"
	KindTrajectoryCompleted = "trajectory.completed"
	KindTrajectoryCancelled = "trajectory.cancelled"
	KindDeviceOnline        = "device.online"
	KindDeviceOffline       = "device.offline"
)

// Event represents a single fleet activity entry.
type Event struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	DeviceID     string         `json:"device_id,omitempty"`
	TrajectoryID *int64         `json:"trajectory_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Filter controls which events to return.
type Filter struct {
	Kind     string // optional: filter by event kind
	DeviceID string // optional: filter by rover
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated event results.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Default and maximum page sizes for event queries.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Repository defines the interface for fleet event operations.
type Repository interface {
	Record(ctx context.Context, event *Event) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores fleet events in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new fleet event repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a new fleet event. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = "evt-" + uuid.NewString()[:8]
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var detailsJSON *string
	if event.Details != nil {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshalling event details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fleet_events (id, kind, device_id, trajectory_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.Kind,
		nullableString(event.DeviceID), event.TrajectoryID,
		detailsJSON,
		event.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting fleet event: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns fleet events matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// WHERE clause is built from parameterised conditions (? placeholders).
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM fleet_events %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting fleet events: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, kind, device_id, trajectory_id, details, created_at FROM fleet_events %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying fleet events: %w", err)
	}
	defer rows.Close()

	var list []Event
	for rows.Next() {
		var event Event
		var deviceID, detailsJSON sql.NullString
		var trajectoryID sql.NullInt64
		var createdAt string

		if err := rows.Scan(&event.ID, &event.Kind,
			&deviceID, &trajectoryID, &detailsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning fleet event: %w", err)
		}

		if deviceID.Valid {
			event.DeviceID = deviceID.String
		}
		if trajectoryID.Valid {
			id := trajectoryID.Int64
			event.TrajectoryID = &id
		}
		if detailsJSON.Valid && detailsJSON.String != "" {
			var details map[string]any
			if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
				event.Details = details
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing fleet event timestamp %q: %w", createdAt, err)
		}
		event.CreatedAt = t

		list = append(list, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fleet events: %w", err)
	}

	if list == nil {
		list = []Event{}
	}

	return &ListResult{
		Events: list,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
