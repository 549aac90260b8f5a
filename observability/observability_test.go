package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hazyhaar/okpyeon/dbopen"
	_ "modernc.org/sqlite"
)

func setupJournal(t *testing.T) *Journal {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	j := NewJournal(db, 64)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestInit_CreatesAllTables(t *testing.T) {
	j := setupJournal(t)
	tables := []string{"runs", "run_events", "_journal_metadata"}
	for _, table := range tables {
		var count int
		j.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if count != 1 {
			t.Fatalf("table %s not found", table)
		}
	}
}

// --- Run lifecycle ---

func TestJournal_StartAndCompleteRun(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	run, err := j.StartRun(ctx, "default", "wordbook.txt")
	if err != nil {
		t.Fatal(err)
	}
	if run.RunID == "" {
		t.Fatal("run_id not generated")
	}
	if run.Status != StatusRunning {
		t.Fatalf("status: got %q, want %q", run.Status, StatusRunning)
	}

	if err := j.CompleteRun(ctx, run.RunID, 12, 7, 2); err != nil {
		t.Fatal(err)
	}

	got, err := j.GetRun(ctx, run.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("run not found after complete")
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status: got %q, want %q", got.Status, StatusCompleted)
	}
	if got.PrimaryCount != 12 || got.SubCount != 7 || got.WarningCount != 2 {
		t.Fatalf("counts: got %d/%d/%d", got.PrimaryCount, got.SubCount, got.WarningCount)
	}
	if got.FinishedAt == nil {
		t.Fatal("finished_at not set")
	}
}

func TestJournal_FailRun(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	run, err := j.StartRun(ctx, "default", "wordbook.txt")
	if err != nil {
		t.Fatal(err)
	}
	if err := j.FailRun(ctx, run.RunID, errors.New("load: no such file")); err != nil {
		t.Fatal(err)
	}

	got, err := j.GetRun(ctx, run.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("status: got %q, want %q", got.Status, StatusFailed)
	}
	if got.ErrorMessage != "load: no such file" {
		t.Fatalf("error_message: got %q", got.ErrorMessage)
	}
}

func TestJournal_GetRun_NotFound(t *testing.T) {
	j := setupJournal(t)
	got, err := j.GetRun(context.Background(), "run_missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("missing run: got %+v, want nil", got)
	}
}

func TestJournal_WithRunIDGenerator(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	gen := func() string { return "run_fixed" }
	j := NewJournal(db, 8, WithRunIDGenerator(gen))
	defer j.Close()

	run, err := j.StartRun(context.Background(), "p", "w")
	if err != nil {
		t.Fatal(err)
	}
	if run.RunID != "run_fixed" {
		t.Fatalf("custom run_id: got %q", run.RunID)
	}
}

// --- Events ---

func TestJournal_LogEventAsync(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	j := NewJournal(db, 64)

	j.LogEvent(j.NewEvent("run_1", StageExtract, "extracted 3 records", 12*time.Millisecond))
	j.LogEvent(j.NewWarning("run_1", StageModify, "trim_space failed", map[string]string{"hanja": "木"}))
	j.Close() // drains the buffer

	j2 := NewJournal(db, 8)
	defer j2.Close()

	events, err := j2.Events(context.Background(), "run_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("event count: got %d, want 2", len(events))
	}
	if events[0].Level != "info" || events[0].Stage != StageExtract {
		t.Fatalf("first event: got %s/%s", events[0].Level, events[0].Stage)
	}
	if events[1].Level != "warn" {
		t.Fatalf("second event level: got %q", events[1].Level)
	}
	if events[1].Detail == "" {
		t.Fatal("warning detail not marshalled")
	}
}

func TestJournal_LogEventSync(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	e := &Event{RunID: "run_s", Stage: StageMerge, Message: "merged 5 records"}
	if err := j.LogEventSync(ctx, e); err != nil {
		t.Fatal(err)
	}
	if e.EventID == "" {
		t.Fatal("event_id not generated")
	}
	if e.Level != "info" {
		t.Fatalf("default level: got %q", e.Level)
	}

	events, err := j.Events(ctx, "run_s")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("event count: got %d", len(events))
	}
	if events[0].Message != "merged 5 records" {
		t.Fatalf("message: got %q", events[0].Message)
	}
}

func TestJournal_BufferFullFallsBackToSync(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	// Buffer of 1 with no reader headroom forces the sync path quickly.
	j := NewJournal(db, 1)

	for i := 0; i < 10; i++ {
		j.LogEvent(j.NewEvent("run_full", StageEnrich, "lookup batch", time.Millisecond))
	}
	j.Close()

	j2 := NewJournal(db, 8)
	defer j2.Close()
	events, err := j2.Events(context.Background(), "run_full")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 10 {
		t.Fatalf("event count: got %d, want 10", len(events))
	}
}

// --- Queries ---

func TestJournal_RunsFilter(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	a, _ := j.StartRun(ctx, "alpha", "a.txt")
	b, _ := j.StartRun(ctx, "beta", "b.txt")
	j.CompleteRun(ctx, a.RunID, 1, 1, 0)
	j.FailRun(ctx, b.RunID, errors.New("boom"))

	failed := StatusFailed
	runs, err := j.Runs(ctx, &RunFilter{Status: &failed})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("filtered count: got %d", len(runs))
	}
	if runs[0].RunID != b.RunID {
		t.Fatalf("run_id: got %q, want %q", runs[0].RunID, b.RunID)
	}

	profile := "alpha"
	runs, err = j.Runs(ctx, &RunFilter{Profile: &profile})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Profile != "alpha" {
		t.Fatalf("profile filter: got %d runs", len(runs))
	}
}

func TestJournal_RunsRejectsBadOrder(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	if _, err := j.Runs(ctx, &RunFilter{OrderBy: "profile; DROP TABLE runs"}); err == nil {
		t.Fatal("bad order_by accepted")
	}
	if _, err := j.Runs(ctx, &RunFilter{OrderDir: "sideways"}); err == nil {
		t.Fatal("bad order_dir accepted")
	}
}

// --- Retention ---

func TestCleanup_Retention(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	oldTs := time.Now().Add(-40 * 24 * time.Hour).Unix()
	j.db.Exec(`INSERT INTO runs (run_id, profile, wordbook, status, started_at)
		VALUES ('run_old', 'p', 'w', 'completed', ?)`, oldTs)
	j.db.Exec(`INSERT INTO run_events (event_id, run_id, stage, level, message, created_at)
		VALUES ('evt_old', 'run_old', 'merge', 'info', 'm', ?)`, oldTs)
	j.StartRun(ctx, "p", "w")

	err := Cleanup(ctx, j.db, RetentionConfig{RunsDays: 30, EventsDays: 30})
	if err != nil {
		t.Fatal(err)
	}

	var runCount, eventCount int
	j.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runCount)
	j.db.QueryRow("SELECT COUNT(*) FROM run_events").Scan(&eventCount)
	if runCount != 1 {
		t.Fatalf("runs after cleanup: got %d, want 1", runCount)
	}
	if eventCount != 0 {
		t.Fatalf("run_events after cleanup: got %d, want 0", eventCount)
	}
}

func TestCleanup_SkipsZeroDays(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	oldTs := time.Now().Add(-40 * 24 * time.Hour).Unix()
	j.db.Exec(`INSERT INTO runs (run_id, profile, wordbook, status, started_at)
		VALUES ('run_old', 'p', 'w', 'completed', ?)`, oldTs)

	if err := Cleanup(ctx, j.db, RetentionConfig{RunsDays: 0}); err != nil {
		t.Fatal(err)
	}

	var count int
	j.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	if count != 1 {
		t.Fatalf("should not clean when days=0: got %d", count)
	}
}

func TestCleanup_ToleratesMissingTraceTable(t *testing.T) {
	j := setupJournal(t)
	// sql_traces is not part of the journal schema; a configured retention
	// for it must not error out.
	if err := Cleanup(context.Background(), j.db, RetentionConfig{TracesDays: 7}); err != nil {
		t.Fatal(err)
	}
}

func TestCleanup_TraceCutoffInMicros(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	// The trace store keeps UnixMicro timestamps; without the unit
	// conversion no trace row would ever look old enough to prune.
	j.db.Exec(`CREATE TABLE sql_traces (trace_id TEXT, transport TEXT, op TEXT,
		query TEXT, duration_us INTEGER, error TEXT, timestamp INTEGER)`)
	old := time.Now().Add(-40 * 24 * time.Hour).UnixMicro()
	fresh := time.Now().UnixMicro()
	j.db.Exec(`INSERT INTO sql_traces (trace_id, transport, op, query, duration_us, error, timestamp)
		VALUES ('', 'cli', 'Exec', 'SELECT 1', 5, '', ?), ('', 'cli', 'Exec', 'SELECT 2', 5, '', ?)`,
		old, fresh)

	if err := Cleanup(ctx, j.db, RetentionConfig{TracesDays: 30}); err != nil {
		t.Fatal(err)
	}
	var n int
	j.db.QueryRow("SELECT COUNT(*) FROM sql_traces").Scan(&n)
	if n != 1 {
		t.Fatalf("traces after cleanup: got %d, want 1 (the fresh row)", n)
	}
}

// --- Health ---

func TestCollectRuntimeStats(t *testing.T) {
	m := CollectRuntimeStats()
	if m.Goroutines <= 0 {
		t.Fatal("goroutines should be > 0")
	}
	if m.MemoryAllocMB <= 0 {
		t.Fatal("memory alloc should be > 0")
	}
}

func TestJournal_Health(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	run, _ := j.StartRun(ctx, "p", "w")
	j.CompleteRun(ctx, run.RunID, 3, 3, 0)

	st := j.Health(ctx, time.Now().Add(-2*time.Second))
	if st.Status != "ok" {
		t.Fatalf("status: got %q", st.Status)
	}
	if st.UptimeSeconds < 1 {
		t.Fatalf("uptime: got %d", st.UptimeSeconds)
	}
	if st.LastRun == nil || st.LastRun.RunID != run.RunID {
		t.Fatalf("last_run: got %+v", st.LastRun)
	}
}

// --- Setup ---

func TestSetup_LevelParsing(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := Setup(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("visible")

	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Fatalf("info leaked at warn level: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("warn not emitted: %s", buf.String())
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn should be enabled")
	}
}
