package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const maxRetries = 3

// IsBusy reports whether err indicates an SQLite BUSY condition.
// It checks for SQLITE_BUSY, "database is locked", and "database table is locked".
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx executes fn inside a transaction, retrying the whole transaction
// on SQLITE_BUSY up to 3 times with 100/200/300 ms backoff.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return withRetry(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("dbopen: begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbopen: commit: %w", err)
		}
		return nil
	})
}

// Exec executes a single statement, retrying on SQLITE_BUSY up to 3 times
// with 100/200/300 ms backoff.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := withRetry(ctx, func() error {
		var err error
		result, err = db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func withRetry(ctx context.Context, attempt func() error) error {
	var err error
	for i := range maxRetries {
		err = attempt()
		if err == nil || !IsBusy(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}
		if serr := sleepCtx(ctx, time.Duration(100*(i+1))*time.Millisecond); serr != nil {
			return fmt.Errorf("dbopen: context cancelled during retry: %w", serr)
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
