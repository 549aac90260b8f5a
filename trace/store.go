package trace

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/okpyeon/dbopen"
)

// Schema for the sql_traces table. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS sql_traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT,
	transport TEXT NOT NULL DEFAULT '',
	op TEXT NOT NULL,
	query TEXT NOT NULL,
	duration_us INTEGER NOT NULL,
	error TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sql_traces_ts ON sql_traces(timestamp);
CREATE INDEX IF NOT EXISTS idx_sql_traces_tid ON sql_traces(trace_id) WHERE trace_id != '';
CREATE INDEX IF NOT EXISTS idx_sql_traces_slow ON sql_traces(duration_us) WHERE duration_us > 100000;
`

// Store persists SQL trace entries to a SQLite table asynchronously.
// It MUST be opened with the raw "sqlite" driver (not "sqlite-trace") to
// avoid infinite recursion.
type Store struct {
	db   *sql.DB
	ch   chan *Entry
	done chan struct{}
	once sync.Once
}

// NewStore creates a trace store backed by the given database connection.
// The db should use the raw "sqlite" driver to avoid tracing its own writes.
func NewStore(db *sql.DB) *Store {
	s := &Store{
		db:   db,
		ch:   make(chan *Entry, 1024),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Init creates the sql_traces table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// RecordAsync queues an entry for async persistence. Non-blocking; drops
// when the buffer is full to avoid backpressure on the caller.
func (s *Store) RecordAsync(e *Entry) {
	select {
	case s.ch <- e:
	default:
	}
}

// Recent returns persisted entries, newest first. An empty traceID returns
// the mixed stream; a non-empty one narrows to a single request or run.
// Entries still sitting in the async buffer are not visible until flushed.
func (s *Store) Recent(ctx context.Context, limit int, traceID string) ([]*Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := `SELECT trace_id, transport, op, query, duration_us, COALESCE(error, ''), timestamp
		FROM sql_traces`
	args := []any{}
	if traceID != "" {
		q += ` WHERE trace_id = ?`
		args = append(args, traceID)
	}
	q += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.TraceID, &e.Transport, &e.Op, &e.Query, &e.DurationUs, &e.Error, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close drains the buffer and stops the flush goroutine.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Entry, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO sql_traces (trace_id, transport, op, query, duration_us, error, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range batch {
			if _, err := stmt.Exec(e.TraceID, e.Transport, e.Op, e.Query, e.DurationUs, e.Error, e.Timestamp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("trace store: flush", "error", err, "dropped", len(batch))
	}
}
