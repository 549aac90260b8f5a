// Package observability records pipeline runs in SQLite: one row per run,
// per-stage events underneath, and modifier warnings at level "warn". It
// replaces an external metrics/log stack with queryable history in the same
// database engine the rest of the tool already uses.
//
// Event persistence is async and batched. A full buffer falls back to a
// synchronous insert rather than dropping the event.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/okpyeon/dbopen"
	"github.com/hazyhaar/okpyeon/idgen"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Pipeline stages, in execution order.
const (
	StageLoad    = "load"
	StageExtract = "extract"
	StageEnrich  = "enrich"
	StageMerge   = "merge"
	StageModify  = "modify"
	StageExport  = "export"
)

// Run is one pipeline execution.
type Run struct {
	RunID        string     `json:"run_id"`
	Profile      string     `json:"profile"`
	Wordbook     string     `json:"wordbook"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	PrimaryCount int        `json:"primary_count"`
	SubCount     int        `json:"sub_count"`
	WarningCount int        `json:"warning_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Event is a single journal entry under a run: a completed stage, a
// modifier warning, or a fatal error.
type Event struct {
	EventID    string    `json:"event_id"`
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Level      string    `json:"level"` // "info", "warn", "error"
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"` // optional JSON
	DurationMs int64     `json:"duration_ms,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Journal persists runs synchronously and events asynchronously.
type Journal struct {
	db         *sql.DB
	newRunID   idgen.Generator
	newEventID idgen.Generator
	ch         chan *Event
	stop       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// Option configures a Journal.
type Option func(*Journal)

// WithRunIDGenerator sets a custom generator for run IDs.
func WithRunIDGenerator(gen idgen.Generator) Option {
	return func(j *Journal) { j.newRunID = gen }
}

// WithEventIDGenerator sets a custom generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) Option {
	return func(j *Journal) { j.newEventID = gen }
}

// NewJournal creates a journal over an already-initialized database.
// Recommended bufferSize: 256.
func NewJournal(db *sql.DB, bufferSize int, opts ...Option) *Journal {
	j := &Journal{
		db:         db,
		newRunID:   idgen.Prefixed("run_", idgen.Default),
		newEventID: idgen.Prefixed("evt_", idgen.Default),
		ch:         make(chan *Event, bufferSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(j)
	}
	go j.flushLoop()
	return j
}

// StartRun inserts a run row in status "running" and returns it.
func (j *Journal) StartRun(ctx context.Context, profile, wordbook string) (*Run, error) {
	run := &Run{
		RunID:     j.newRunID(),
		Profile:   profile,
		Wordbook:  wordbook,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	_, err := j.db.ExecContext(ctx, `INSERT INTO runs
		(run_id, profile, wordbook, status, started_at)
		VALUES (?,?,?,?,?)`,
		run.RunID, run.Profile, run.Wordbook, run.Status, run.StartedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("observability: start run: %w", err)
	}
	return run, nil
}

// CompleteRun closes a run with its final stream and warning counts.
func (j *Journal) CompleteRun(ctx context.Context, runID string, primary, sub, warnings int) error {
	_, err := j.db.ExecContext(ctx, `UPDATE runs
		SET status = ?, finished_at = ?, primary_count = ?, sub_count = ?, warning_count = ?
		WHERE run_id = ?`,
		StatusCompleted, time.Now().Unix(), primary, sub, warnings, runID)
	if err != nil {
		return fmt.Errorf("observability: complete run %s: %w", runID, err)
	}
	return nil
}

// FailRun closes a run with status "failed" and the fatal error's message.
func (j *Journal) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := j.db.ExecContext(ctx, `UPDATE runs
		SET status = ?, finished_at = ?, error_message = ?
		WHERE run_id = ?`,
		StatusFailed, time.Now().Unix(), msg, runID)
	if err != nil {
		return fmt.Errorf("observability: fail run %s: %w", runID, err)
	}
	return nil
}

// NewEvent builds an info-level event for a completed stage.
func (j *Journal) NewEvent(runID, stage, message string, duration time.Duration) *Event {
	return &Event{
		EventID:    j.newEventID(),
		RunID:      runID,
		Stage:      stage,
		Level:      "info",
		Message:    message,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  time.Now(),
	}
}

// NewWarning builds a warn-level event. Detail is marshalled to JSON;
// a value that cannot be marshalled is silently omitted.
func (j *Journal) NewWarning(runID, stage, message string, detail any) *Event {
	e := &Event{
		EventID:   j.newEventID(),
		RunID:     runID,
		Stage:     stage,
		Level:     "warn",
		Message:   message,
		CreatedAt: time.Now(),
	}
	if detail != nil {
		if b, err := json.Marshal(detail); err == nil {
			e.Detail = string(b)
		}
	}
	return e
}

// LogEvent queues an event for async persistence.
// Falls back to a synchronous insert if the buffer is full.
func (j *Journal) LogEvent(e *Event) {
	j.fillDefaults(e)
	select {
	case j.ch <- e:
	default:
		slog.Warn("journal buffer full, sync fallback", "run_id", e.RunID, "stage", e.Stage)
		if err := j.insert(context.Background(), e); err != nil {
			slog.Error("journal: sync fallback failed", "error", err)
		}
	}
}

// LogEventSync inserts an event synchronously.
func (j *Journal) LogEventSync(ctx context.Context, e *Event) error {
	j.fillDefaults(e)
	return j.insert(ctx, e)
}

// Close drains the buffer and stops the flush goroutine. Safe to call
// more than once.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() {
		close(j.stop)
		<-j.done
	})
	return nil
}

func (j *Journal) fillDefaults(e *Event) {
	if e.EventID == "" {
		e.EventID = j.newEventID()
	}
	if e.Level == "" {
		e.Level = "info"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
}

func (j *Journal) flushLoop() {
	defer close(j.done)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	batch := make([]*Event, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// The whole batch goes in one transaction; RunTx retries it on
		// SQLITE_BUSY when another handle holds the write lock.
		err := dbopen.RunTx(ctx, j.db, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_events
				(event_id, run_id, stage, level, message, detail, duration_ms, created_at)
				VALUES (?,?,?,?,?,?,?,?)`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, e := range batch {
				if _, err := stmt.ExecContext(ctx,
					e.EventID, e.RunID, e.Stage, e.Level, e.Message,
					e.Detail, e.DurationMs, e.CreatedAt.Unix(),
				); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			slog.Error("journal: flush events", "error", err, "dropped", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-j.stop:
			// drain channel
			for {
				select {
				case e := <-j.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-j.ch:
			batch = append(batch, e)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (j *Journal) insert(ctx context.Context, e *Event) error {
	_, err := j.db.ExecContext(ctx, `INSERT INTO run_events
		(event_id, run_id, stage, level, message, detail, duration_ms, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.EventID, e.RunID, e.Stage, e.Level, e.Message,
		e.Detail, e.DurationMs, e.CreatedAt.Unix())
	return err
}
