package observability

import "database/sql"

// Schema contains the complete DDL for the run journal. Pass it to
// dbopen.WithSchema when opening the journal database, or call Init(db)
// to apply it to an already-open handle.
const Schema = `
-- Pipeline runs
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    profile TEXT NOT NULL,
    wordbook TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'running',
    started_at INTEGER NOT NULL,
    finished_at INTEGER,
    primary_count INTEGER NOT NULL DEFAULT 0,
    sub_count INTEGER NOT NULL DEFAULT 0,
    warning_count INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_runs_started
    ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status
    ON runs(status, started_at DESC);

-- Per-stage events and modifier warnings
CREATE TABLE IF NOT EXISTS run_events (
    event_id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    level TEXT NOT NULL DEFAULT 'info',
    message TEXT NOT NULL,
    detail TEXT,
    duration_ms INTEGER,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_run_events_run
    ON run_events(run_id, created_at);
CREATE INDEX IF NOT EXISTS idx_run_events_level
    ON run_events(level, created_at DESC);

-- Metadata registry
CREATE TABLE IF NOT EXISTS _journal_metadata (
    table_name TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    description TEXT
);
INSERT OR IGNORE INTO _journal_metadata (table_name, description) VALUES
    ('runs', 'One row per pipeline run'),
    ('run_events', 'Per-stage events and modifier warnings');
`

// Init applies the journal schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
