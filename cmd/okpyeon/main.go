// CLAUDE:SUMMARY Entry point: run (one-shot pipeline), serve (chi HTTP API), mcp (stdio tool server).
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/okpyeon/dbopen"
	"github.com/hazyhaar/okpyeon/naver"
	"github.com/hazyhaar/okpyeon/observability"
	"github.com/hazyhaar/okpyeon/pipeline"
	"github.com/hazyhaar/okpyeon/trace"
)

const version = "0.3.0"

func usage() {
	fmt.Fprintf(os.Stderr, `okpyeon <command>

Commands:
  run <profile>   execute one pipeline run, print the result summary
  serve           HTTP API on PORT (default 8086)
  mcp             MCP tool server on stdio

Environment:
  LOG_LEVEL        debug|info|warn|error (default info)
  PROFILES_DIR     profile YAML directory (default profiles)
  INPUT_ROOT       wordbook input root (default data/input)
  JOURNAL_DB       run journal path (default db/journal.db)
  CACHE_DB         lookup cache path (default db/cache.db)
  TRACE_DB         SQL trace path (default db/traces.db)
  NAVER_URL        dictionary base URL (default %s)
  BROWSER_URL      WebSocket URL of an external Chrome (default: launch locally)
  BROWSER_HEADFUL  1 runs Chrome headful on Xvfb
  PORT             serve listen port (default 8086)
  AUTH_PASSWORD    serve Basic Auth password (required for serve)
  RETENTION_DAYS   journal/trace retention for serve, 0 disables (default 30)
`, naver.DefaultBaseURL)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	mode := os.Args[1]

	// The MCP protocol stream owns stdout; logs move to stderr there.
	logW := io.Writer(os.Stdout)
	if mode == "mcp" {
		logW = os.Stderr
	}
	logger := observability.Setup(logW, env("LOG_LEVEL", "info"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch mode {
	case "run":
		if len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: okpyeon run <profile>")
			os.Exit(2)
		}
		err = runMain(ctx, logger, os.Args[2])
	case "serve":
		err = serveMain(ctx, logger)
	case "mcp":
		err = mcpMain(ctx, logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("fatal", "mode", mode, "error", err)
		os.Exit(1)
	}
}

// app bundles the wired collaborators shared by the three modes.
type app struct {
	svc        *pipeline.Service
	journal    *observability.Journal
	dict       *naver.Dict
	traceStore *trace.Store
	journalDB  *sql.DB
	traceDB    *sql.DB
	dbs        []*sql.DB
}

func newApp(logger *slog.Logger) (*app, error) {
	a := &app{}

	// Trace store. Opened with the raw "sqlite" driver, never
	// "sqlite-trace", to avoid recursion.
	traceDB, err := dbopen.Open(env("TRACE_DB", "db/traces.db"), dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("trace db: %w", err)
	}
	a.dbs = append(a.dbs, traceDB)
	a.traceDB = traceDB
	store := trace.NewStore(traceDB)
	if err := store.Init(); err != nil {
		a.Close()
		return nil, fmt.Errorf("trace init: %w", err)
	}
	trace.SetStore(store)
	a.traceStore = store

	// Run journal.
	journalDB, err := dbopen.Open(env("JOURNAL_DB", "db/journal.db"),
		dbopen.WithMkdirAll(), dbopen.WithTrace(), dbopen.WithSchema(observability.Schema))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("journal db: %w", err)
	}
	a.dbs = append(a.dbs, journalDB)
	a.journalDB = journalDB
	a.journal = observability.NewJournal(journalDB, 256)

	// Lookup cache.
	cacheDB, err := dbopen.Open(env("CACHE_DB", "db/cache.db"),
		dbopen.WithMkdirAll(), dbopen.WithTrace(), dbopen.WithSchema(naver.CacheSchema))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("cache db: %w", err)
	}
	a.dbs = append(a.dbs, cacheDB)

	// Dictionary client. Chrome launches lazily, so constructing it is
	// free even for profiles that never enrich.
	dict, err := naver.New(naver.Config{
		BaseURL: env("NAVER_URL", ""),
		Cache:   naver.NewCache(cacheDB, 0),
		Browser: naver.BrowserConfig{
			RemoteURL:      env("BROWSER_URL", ""),
			Headful:        envBool("BROWSER_HEADFUL"),
			BlockResources: []string{"image", "font", "media", "stylesheet"},
		},
		Logger: logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("dictionary client: %w", err)
	}
	a.dict = dict

	runner := pipeline.NewRunner(pipeline.Config{
		InputRoot: env("INPUT_ROOT", "data/input"),
		Client:    dict,
		Journal:   a.journal,
		Logger:    logger,
	})
	a.svc = pipeline.NewService(pipeline.ServiceConfig{
		ProfilesDir: env("PROFILES_DIR", "profiles"),
		Runner:      runner,
		Journal:     a.journal,
		Logger:      logger,
	})
	return a, nil
}

// Close releases everything in dependency order: browser before the
// cache DB it writes through, journal before its DB, trace store last so
// the other closes still get traced.
func (a *app) Close() {
	if a.dict != nil {
		if err := a.dict.Close(); err != nil {
			slog.Warn("close browser", "error", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			slog.Warn("close journal", "error", err)
		}
	}
	if a.traceStore != nil {
		trace.SetStore(nil)
		a.traceStore.Close()
	}
	for i := len(a.dbs) - 1; i >= 0; i-- {
		a.dbs[i].Close()
	}
}

func runMain(ctx context.Context, logger *slog.Logger, profile string) error {
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.Run(ctx, profile)
	if err != nil {
		return err
	}

	// The export files carry the records; stdout gets the summary.
	out := *res
	out.Entries = nil
	out.Usages = nil
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func mcpMain(ctx context.Context, logger *slog.Logger) error {
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "okpyeon", Version: version}, nil)
	a.svc.RegisterMCP(srv)

	logger.Info("mcp server on stdio", "version", version)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v := os.Getenv(key)
	return v == "1" || v == "true"
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
