package trace

import (
	"context"
	"database/sql/driver"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/okpyeon/kit"
)

// traceDriver wraps the modernc.org/sqlite driver so every statement is
// measured and recorded. Registered as "sqlite-trace" in init().
type traceDriver struct {
	inner driver.Driver
}

func (d *traceDriver) Open(name string) (driver.Conn, error) {
	conn, err := d.inner.Open(name)
	if err != nil {
		return nil, err
	}
	return &traceConn{Conn: conn}, nil
}

type traceConn struct {
	driver.Conn
}

func (c *traceConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.Conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &traceStmt{Stmt: stmt, query: normalizeQuery(query)}, nil
}

func (c *traceConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if pc, ok := c.Conn.(driver.ConnPrepareContext); ok {
		stmt, err := pc.PrepareContext(ctx, query)
		if err != nil {
			return nil, err
		}
		return &traceStmt{Stmt: stmt, query: normalizeQuery(query)}, nil
	}
	return c.Prepare(query)
}

type traceStmt struct {
	driver.Stmt
	query string
}

func (s *traceStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var result driver.Result
	var err error
	if ec, ok := s.Stmt.(driver.StmtExecContext); ok {
		result, err = ec.ExecContext(ctx, args)
	} else {
		result, err = s.Stmt.Exec(namedToValues(args))
	}
	s.record(ctx, "Exec", time.Since(start), err)
	return result, err
}

func (s *traceStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var rows driver.Rows
	var err error
	if qc, ok := s.Stmt.(driver.StmtQueryContext); ok {
		rows, err = qc.QueryContext(ctx, args)
	} else {
		rows, err = s.Stmt.Query(namedToValues(args))
	}
	s.record(ctx, "Query", time.Since(start), err)
	return rows, err
}

func (s *traceStmt) Exec(args []driver.Value) (driver.Result, error) {
	start := time.Now()
	result, err := s.Stmt.Exec(args)
	s.record(context.Background(), "Exec", time.Since(start), err)
	return result, err
}

func (s *traceStmt) Query(args []driver.Value) (driver.Rows, error) {
	start := time.Now()
	rows, err := s.Stmt.Query(args)
	s.record(context.Background(), "Query", time.Since(start), err)
	return rows, err
}

func (s *traceStmt) record(ctx context.Context, op string, d time.Duration, err error) {
	// Skip PRAGMA noise (dbopen applies four pragmas on every open).
	// Still record if slow (>10ms) or errored.
	if err == nil && d < 10*time.Millisecond && strings.HasPrefix(s.query, "PRAGMA ") {
		return
	}

	traceID := kit.GetTraceID(ctx)
	transport := kit.GetTransport(ctx)

	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	} else if d > 100*time.Millisecond {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("component", "sql"),
		slog.String("op", op),
		slog.String("query", s.query),
		slog.Duration("duration", d),
		slog.String("transport", transport),
	}
	if traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	slog.LogAttrs(ctx, level, "SQL", attrs...)

	// Persistence is async and non-blocking; nil store means slog-only.
	if store := getStore(); store != nil {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		store.RecordAsync(&Entry{
			TraceID:    traceID,
			Transport:  transport,
			Op:         op,
			Query:      s.query,
			DurationUs: d.Microseconds(),
			Error:      errMsg,
			Timestamp:  time.Now().UnixMicro(),
		})
	}
}

func namedToValues(named []driver.NamedValue) []driver.Value {
	vals := make([]driver.Value, len(named))
	for i, nv := range named {
		vals[i] = nv.Value
	}
	return vals
}

// normalizeQuery collapses whitespace and caps the recorded text so
// multi-line schema DDL and bulk inserts do not bloat the trace table.
func normalizeQuery(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 400 {
		q = q[:400] + "..."
	}
	return q
}
