// Package trace provides transparent SQL tracing for modernc.org/sqlite.
//
// It registers a "sqlite-trace" driver wrapping the standard "sqlite"
// driver, intercepting every Exec and Query at the database/sql/driver
// level. The lookup cache and the run journal switch to it with
// dbopen.WithTrace(); no other code changes:
//
//	import _ "github.com/hazyhaar/okpyeon/trace"  // registers "sqlite-trace"
//
//	// Trace store (opened with raw "sqlite" to avoid recursion)
//	traceDB, _ := dbopen.Open("traces.db")
//	store := trace.NewStore(traceDB)
//	store.Init()
//	trace.SetStore(store)
//
//	cacheDB, _ := dbopen.Open("cache.db", dbopen.WithTrace())
//
// Without a Store (SetStore not called or nil), the driver still logs
// every query via slog with adaptive levels (Debug, Warn >100ms, Error on
// failure). Each entry carries the trace ID and transport from the
// request context, so one pipeline run's SQL activity can be pulled out
// of the mixed stream afterwards.
package trace

import (
	"database/sql"
	"sync"

	sqlite "modernc.org/sqlite"
)

// Entry is a single SQL trace record.
type Entry struct {
	TraceID    string `json:"trace_id,omitempty"` // correlation with the HTTP/MCP request
	Transport  string `json:"transport"`          // "cli", "http", or "mcp"
	Op         string `json:"op"`                 // "Exec" or "Query"
	Query      string `json:"query"`              // SQL statement
	DurationUs int64  `json:"duration_us"`        // microseconds
	Error      string `json:"error,omitempty"`    // empty if success
	Timestamp  int64  `json:"timestamp"`          // unix microseconds
}

// Recorder is the interface for trace persistence backends.
type Recorder interface {
	RecordAsync(e *Entry)
	Close() error
}

// global store for persistence (nil = slog-only, no SQLite persistence)
var (
	globalStore Recorder
	storeMu     sync.RWMutex
)

// SetStore sets the global trace recorder for persistence.
// Pass nil to disable persistence (slog-only mode).
func SetStore(s Recorder) {
	storeMu.Lock()
	globalStore = s
	storeMu.Unlock()
}

func getStore() Recorder {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return globalStore
}

func init() {
	sql.Register("sqlite-trace", &traceDriver{
		inner: &sqlite.Driver{},
	})
}
