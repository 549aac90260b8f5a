// Package dbopen opens the tool's SQLite databases (lookup cache, run
// journal, SQL traces) with one set of pragmas, applied via Exec so they
// work through the tracing driver too:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// Usage:
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("cache.db", dbopen.WithSchema(cacheSchema))
//
// With the SQL tracing driver:
//
//	import _ "github.com/hazyhaar/okpyeon/trace"
//	db, err := dbopen.Open("cache.db", dbopen.WithTrace())
//
// In tests:
//
//	db := dbopen.OpenMemory(t)
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type config struct {
	driver   string
	mkdirAll bool
	schemas  []string
}

// Option customises Open behaviour.
type Option func(*config)

// WithTrace opens through the "sqlite-trace" driver so every statement is
// logged and recorded. The caller must blank-import the trace package.
func WithTrace() Option { return func(c *config) { c.driver = "sqlite-trace" } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema queues inline SQL to execute after pragmas are applied.
// Repeatable; schemas run in the order given.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// Open opens an SQLite database at path, applies the pragmas, runs any
// queued schemas, and verifies the connection with a ping.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := config{driver: "sqlite"}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open(cfg.driver, path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: %s: %w", p, err)
		}
	}

	for _, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping: %w", err)
	}

	return db, nil
}

// OpenMemory opens an in-memory SQLite database for testing.
// It sets MaxOpenConns(1) so every query hits the same in-memory database
// (each connection to ":memory:" creates a separate one) and registers
// t.Cleanup to close it.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
