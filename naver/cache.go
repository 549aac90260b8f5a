// CLAUDE:SUMMARY SQLite lookup cache: JSON record payloads keyed by kind-prefixed hanja/word, TTL expiry, prune.
package naver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/okpyeon/dbopen"
	"github.com/hazyhaar/okpyeon/record"
)

// CacheSchema is the DDL for the lookup cache. Pass it to
// dbopen.WithSchema when opening the cache database.
const CacheSchema = `
CREATE TABLE IF NOT EXISTS hanja_cache (
    cache_key TEXT PRIMARY KEY,   -- "letter:木" or "word:木馬"
    payload BLOB NOT NULL,        -- JSON-encoded record
    fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hanja_cache_fetched
    ON hanja_cache(fetched_at);
`

// DefaultCacheTTL keeps cached lookups for a week. The dictionary is
// effectively static; the TTL exists so a parse fix eventually reaches
// entries cached before it.
const DefaultCacheTTL = 7 * 24 * time.Hour

// Cache stores lookup results so repeat runs over the same wordbook skip
// the browser entirely. Misses are cached too: a character the
// dictionary does not know stays unknown.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewCache wraps an already-initialized database (see CacheSchema).
// ttl <= 0 means DefaultCacheTTL.
func NewCache(db *sql.DB, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}
}

// Get returns the cached record for key, reporting a miss for unknown or
// expired entries.
func (c *Cache) Get(ctx context.Context, key string) (record.Record, bool, error) {
	var payload []byte
	var fetchedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM hanja_cache WHERE cache_key = ?`, key).
		Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("naver: cache get %q: %w", key, err)
	}
	if c.now().Sub(time.Unix(fetchedAt, 0)) > c.ttl {
		return nil, false, nil
	}

	var rec record.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, false, fmt.Errorf("naver: cache decode %q: %w", key, err)
	}
	return rec, true, nil
}

// Put stores a lookup result, replacing any previous entry for the key.
func (c *Cache) Put(ctx context.Context, key string, rec record.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("naver: cache encode %q: %w", key, err)
	}
	_, err = dbopen.Exec(ctx, c.db,
		`INSERT INTO hanja_cache (cache_key, payload, fetched_at) VALUES (?,?,?)
		 ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		key, payload, c.now().Unix())
	if err != nil {
		return fmt.Errorf("naver: cache put %q: %w", key, err)
	}
	return nil
}

// Prune deletes expired entries and returns how many went.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.ttl).Unix()
	res, err := dbopen.Exec(ctx, c.db,
		`DELETE FROM hanja_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("naver: cache prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Cache key prefixes keep letter and word lookups apart in one table.
func letterKey(hanja string) string { return "letter:" + hanja }
func wordKey(word string) string    { return "word:" + word }
