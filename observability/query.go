package observability

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RunFilter controls query results from the runs table.
type RunFilter struct {
	Status   *string
	Profile  *string
	Since    *time.Time
	Until    *time.Time
	Limit    int    // default 50
	Offset   int
	OrderBy  string // "started_at", "finished_at", "warning_count", "status"
	OrderDir string // "ASC" or "DESC"
}

// Runs retrieves run rows matching the given filter, newest first by default.
func (j *Journal) Runs(ctx context.Context, f *RunFilter) ([]*Run, error) {
	q := `SELECT run_id, profile, wordbook, status, started_at, finished_at,
		primary_count, sub_count, warning_count, error_message
		FROM runs WHERE 1=1`
	var args []interface{}

	if f.Status != nil {
		q += " AND status = ?"
		args = append(args, *f.Status)
	}
	if f.Profile != nil {
		q += " AND profile = ?"
		args = append(args, *f.Profile)
	}
	if f.Since != nil {
		q += " AND started_at >= ?"
		args = append(args, f.Since.Unix())
	}
	if f.Until != nil {
		q += " AND started_at <= ?"
		args = append(args, f.Until.Unix())
	}

	orderBy := "started_at"
	if f.OrderBy != "" {
		switch f.OrderBy {
		case "started_at", "finished_at", "warning_count", "status":
			orderBy = f.OrderBy
		default:
			return nil, fmt.Errorf("invalid order_by column: %q", f.OrderBy)
		}
	}
	orderDir := "DESC"
	if f.OrderDir != "" {
		switch strings.ToUpper(f.OrderDir) {
		case "ASC", "DESC":
			orderDir = strings.ToUpper(f.OrderDir)
		default:
			return nil, fmt.Errorf("invalid order_dir: %q", f.OrderDir)
		}
	}
	q += fmt.Sprintf(" ORDER BY %s %s", orderBy, orderDir)

	limit := 50
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " LIMIT ?"
	args = append(args, limit)
	if f.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by ID, or nil, nil if it does not exist.
func (j *Journal) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT run_id, profile, wordbook, status,
		started_at, finished_at, primary_count, sub_count, warning_count, error_message
		FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Events returns a run's journal entries in insertion order.
func (j *Journal) Events(ctx context.Context, runID string) ([]*Event, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT event_id, run_id, stage, level,
		message, detail, duration_ms, created_at
		FROM run_events WHERE run_id = ?
		ORDER BY created_at ASC, event_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("observability: query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var detail sql.NullString
		var durationMs sql.NullInt64
		var ts int64
		if err := rows.Scan(&e.EventID, &e.RunID, &e.Stage, &e.Level,
			&e.Message, &detail, &durationMs, &ts); err != nil {
			return nil, fmt.Errorf("observability: scan event: %w", err)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		if durationMs.Valid {
			e.DurationMs = durationMs.Int64
		}
		e.CreatedAt = time.Unix(ts, 0)
		events = append(events, &e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var started int64
	var finished sql.NullInt64
	var errMsg sql.NullString
	if err := row.Scan(&r.RunID, &r.Profile, &r.Wordbook, &r.Status,
		&started, &finished, &r.PrimaryCount, &r.SubCount, &r.WarningCount, &errMsg); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("observability: scan run: %w", err)
	}
	r.StartedAt = time.Unix(started, 0)
	if finished.Valid {
		t := time.Unix(finished.Int64, 0)
		r.FinishedAt = &t
	}
	if errMsg.Valid {
		r.ErrorMessage = errMsg.String
	}
	return &r, nil
}
