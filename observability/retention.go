package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RetentionConfig specifies per-table retention in days. Zero means no cleanup.
type RetentionConfig struct {
	RunsDays       int
	EventsDays     int
	TracesDays     int // sql_traces, present only when SQL tracing is enabled
	RunVacuumAfter bool
}

// Cleanup deletes journal records exceeding the retention thresholds.
// Missing tables are skipped, so the same config works whether or not the
// trace store shares the journal database.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()

	// allowedTables and allowedColumns are whitelists to prevent SQL injection
	// if this pattern is ever refactored to accept external input.
	allowedTables := map[string]bool{
		"runs":       true,
		"run_events": true,
		"sql_traces": true,
	}
	allowedColumns := map[string]bool{
		"started_at": true,
		"created_at": true,
		"timestamp":  true,
	}

	type cleanupTarget struct {
		table  string
		column string
		days   int
		cutoff int64
	}
	secs := func(days int) int64 { return now - int64(days)*86400 }
	targets := []cleanupTarget{
		{"run_events", "created_at", cfg.EventsDays, secs(cfg.EventsDays)},
		{"runs", "started_at", cfg.RunsDays, secs(cfg.RunsDays)},
		// sql_traces timestamps are UnixMicro, not Unix seconds.
		{"sql_traces", "timestamp", cfg.TracesDays, secs(cfg.TracesDays) * 1_000_000},
	}

	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		if !allowedTables[t.table] || !allowedColumns[t.column] {
			return fmt.Errorf("cleanup: invalid table/column %s/%s", t.table, t.column)
		}
		ok, err := tableExists(ctx, db, t.table)
		if err != nil {
			return fmt.Errorf("cleanup %s: %w", t.table, err)
		}
		if !ok {
			continue
		}
		q := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", t.table, t.column)
		if _, err := db.ExecContext(ctx, q, t.cutoff); err != nil {
			return fmt.Errorf("cleanup %s: %w", t.table, err)
		}
	}

	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}
	return nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
