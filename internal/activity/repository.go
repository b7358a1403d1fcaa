// Package activity records the device actions routines have issued.
//
// The runner only appends (via the Sink interface); the HTTP layer reads
// entries back through List.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed-width so occurred_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Entry is one successfully issued routine action.
type Entry struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurredAt"`
	RoutineID  string    `json:"routineId"`
	ActionID   string    `json:"actionId,omitempty"`
	DeviceID   string    `json:"deviceId"`
	SourceID   string    `json:"sourceId,omitempty"`

	// Label is the device name, routine name or device id.
	Label string `json:"label"`

	// Action is "on", "off" or "capability:command".
	Action string `json:"action"`

	// Trigger is "time", "interval" or "manual".
	Trigger string `json:"trigger"`
}

// Filter controls which entries List returns.
type Filter struct {
	RoutineID string // optional
	DeviceID  string // optional
	Limit     int    // default 50, max 200
	Offset    int
}

// ListResult is a page of entries, most recent first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Sink accepts new activity entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// SQLiteRepository stores activity in the activity_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new activity repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts e. ID and OccurredAt are generated if empty.
func (r *SQLiteRepository) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, occurred_at, routine_id, action_id, device_id, source_id, label, action, trigger)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OccurredAt.UTC().Format(timeLayout),
		e.RoutineID, e.ActionID, e.DeviceID, e.SourceID,
		e.Label, e.Action, e.Trigger,
	)
	if err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}
	return nil
}

// List returns entries matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.RoutineID != "" {
		conditions = append(conditions, "routine_id = ?")
		args = append(args, filter.RoutineID)
	}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM activity_log " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting activity: %w", err)
	}

	query := "SELECT id, occurred_at, routine_id, action_id, device_id, source_id, label, action, trigger FROM activity_log " +
		where + " ORDER BY occurred_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var occurredAt string
		if err := rows.Scan(&e.ID, &occurredAt, &e.RoutineID, &e.ActionID,
			&e.DeviceID, &e.SourceID, &e.Label, &e.Action, &e.Trigger); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		t, err := time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing activity timestamp %q: %w", occurredAt, err)
		}
		e.OccurredAt = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
