// CLAUDE:SUMMARY Rod-driven dictionary client: cache-first batched lookups over stealth Chrome, absence on no-match.
package naver

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/okpyeon/extract"
	"github.com/hazyhaar/okpyeon/guard"
	"github.com/hazyhaar/okpyeon/naver/internal/browser"
	"github.com/hazyhaar/okpyeon/record"
)

// DefaultBaseURL is the dictionary endpoint.
const DefaultBaseURL = "https://hanja.dict.naver.com"

// Wait selectors: the app has rendered once these exist.
const (
	waitSearchLetter = "#searchPage_letter"
	waitSearchWord   = "#searchPage_word"
	waitEntry        = ".component_entry"
)

// Config configures the Dict client.
type Config struct {
	// BaseURL of the dictionary. Default: DefaultBaseURL. Overridable
	// for tests and mirrors; validated against SSRF at construction.
	BaseURL string

	// Cache is the optional lookup cache. Nil disables caching and
	// every lookup hits the browser.
	Cache *Cache

	// Browser configures the Chrome manager behind the client.
	Browser BrowserConfig

	Logger *slog.Logger
}

// BrowserConfig holds the Chrome knobs a deployment tunes. It mirrors
// the manager's own config; zero values take the manager defaults.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty launches a local one.
	RemoteURL string

	// Headful runs Chrome with a real window on an Xvfb display, for
	// when the headless fingerprint gets blocked.
	Headful bool

	// RecyclePages restarts Chrome after this many visits.
	RecyclePages int

	// BlockResources lists resource types to abort at the network
	// layer (images, fonts, media, stylesheets).
	BlockResources []string

	// NavTimeout bounds one navigation plus render wait.
	NavTimeout time.Duration
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Dict looks hanja and usage words up on the live dictionary. One Dict
// owns one browser; lookups are serialized by the manager underneath, so
// a Dict is safe to share.
type Dict struct {
	cfg   Config
	mgr   *browser.Manager
	cache *Cache
	log   *slog.Logger
}

// New creates a Dict client. The browser launches lazily on the first
// uncached lookup.
func New(cfg Config) (*Dict, error) {
	cfg.defaults()
	if err := guard.ValidateURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("naver: base url: %w", err)
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:      cfg.Browser.RemoteURL,
		Headful:        cfg.Browser.Headful,
		RecyclePages:   cfg.Browser.RecyclePages,
		BlockResources: cfg.Browser.BlockResources,
		NavTimeout:     cfg.Browser.NavTimeout,
		Logger:         cfg.Logger,
	})
	return &Dict{
		cfg:   cfg,
		mgr:   mgr,
		cache: cfg.Cache,
		log:   cfg.Logger,
	}, nil
}

// Close shuts the browser down.
func (d *Dict) Close() error {
	return d.mgr.Close()
}

// LookupEntries resolves each hanja to its detail record, cache first.
// Transport failures abort the batch; a character missing from the
// dictionary yields a record with only the identifying field set.
func (d *Dict) LookupEntries(ctx context.Context, hanja []string) ([]record.Record, error) {
	out := make([]record.Record, 0, len(hanja))
	for i, h := range hanja {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("naver: lookup entries: %w", err)
		}
		rec, err := d.lookupLetter(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("naver: entry %d (%s): %w", i, h, err)
		}
		d.log.Info("naver: letter looked up",
			"hanja", h, "index", i+1, "total", len(hanja),
			"resolved", rec.Present(FieldNaverID))
		out = append(out, rec)
	}
	return out, nil
}

// LookupUsages resolves the usage words of each pair, one record per
// pair. Unresolved words keep their slot as empty strings so the word,
// meaning and ID lists stay aligned.
func (d *Dict) LookupUsages(ctx context.Context, pairs []UsagePair) ([]record.Record, error) {
	out := make([]record.Record, 0, len(pairs))
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("naver: lookup usages: %w", err)
		}

		words := make([]string, 0, len(p.Words))
		meanings := make([]string, 0, len(p.Words))
		ids := make([]string, 0, len(p.Words))
		for _, w := range p.Words {
			w = Standardize(w)
			entry, err := d.lookupWord(ctx, w)
			if err != nil {
				return nil, fmt.Errorf("naver: usage %d (%s): word %s: %w", i, p.Hanja, w, err)
			}
			words = append(words, w)
			meanings = append(meanings, entry.meaning)
			ids = append(ids, entry.id)
		}

		rec := record.New()
		rec.Set(record.KeyHanja, record.Text(Standardize(p.Hanja)))
		rec.Set(FieldWords, record.List(words...))
		rec.Set(FieldWordMeanings, record.List(meanings...))
		rec.Set(FieldWordIDs, record.List(ids...))
		out = append(out, rec)
	}
	return out, nil
}

// lookupLetter runs the two-page flow of a letter lookup: search page to
// find the entry ID, entry page for the detail fields.
func (d *Dict) lookupLetter(ctx context.Context, hanja string) (record.Record, error) {
	hanja = Standardize(hanja)
	key := letterKey(hanja)
	if rec, ok := d.cacheGet(ctx, key); ok {
		return rec, nil
	}

	rec := record.New()
	rec.Set(record.KeyHanja, record.Text(hanja))

	searchDoc, err := d.visit(ctx, d.searchURL(hanja), waitSearchLetter)
	if err != nil {
		return nil, err
	}
	id, ok := letterID(searchDoc, hanja)
	if !ok {
		d.log.Warn("naver: letter not found", "hanja", hanja)
		d.cachePut(ctx, key, rec)
		return rec, nil
	}

	entryDoc, err := d.visit(ctx, d.entryURL(id), waitEntry)
	if err != nil {
		return nil, err
	}
	for k, v := range parseEntry(entryDoc) {
		rec.Set(k, v)
	}
	rec.Set(FieldNaverID, record.Text(id))

	d.cachePut(ctx, key, rec)
	return rec, nil
}

// lookupWord resolves one usage word from the word section of the search
// page. A miss comes back as a zero wordEntry, never an error.
func (d *Dict) lookupWord(ctx context.Context, word string) (wordEntry, error) {
	key := wordKey(word)
	if rec, ok := d.cacheGet(ctx, key); ok {
		return wordEntry{
			meaning: rec.Get(FieldWordMeanings).Text(),
			id:      rec.Get(FieldWordIDs).Text(),
		}, nil
	}

	doc, err := d.visit(ctx, d.searchURL(word), waitSearchWord)
	if err != nil {
		return wordEntry{}, err
	}
	entry, ok := wordLookup(doc, word)
	if !ok {
		d.log.Warn("naver: word not found", "word", word)
	}

	cached := record.New()
	cached.Set(FieldWordMeanings, record.Text(entry.meaning))
	cached.Set(FieldWordIDs, record.Text(entry.id))
	d.cachePut(ctx, key, cached)
	return entry, nil
}

func (d *Dict) visit(ctx context.Context, pageURL, waitSelector string) (*html.Node, error) {
	htmlText, err := d.mgr.Visit(ctx, pageURL, waitSelector)
	if err != nil {
		return nil, err
	}
	return extract.ParseString(htmlText)
}

func (d *Dict) searchURL(query string) string {
	return d.cfg.BaseURL + "/search?query=" + url.QueryEscape(query)
}

func (d *Dict) entryURL(id string) string {
	return d.cfg.BaseURL + "/#/entry/ccko/" + id
}

// cacheGet reads through the cache, degrading a broken cache to a miss:
// a damaged cache database must not kill a run the browser could serve.
func (d *Dict) cacheGet(ctx context.Context, key string) (record.Record, bool) {
	if d.cache == nil {
		return nil, false
	}
	rec, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		d.log.Warn("naver: cache read failed", "key", key, "error", err)
		return nil, false
	}
	return rec, ok
}

func (d *Dict) cachePut(ctx context.Context, key string, rec record.Record) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Put(ctx, key, rec); err != nil {
		d.log.Warn("naver: cache write failed", "key", key, "error", err)
	}
}
