// CLAUDE:SUMMARY HTTP serve mode: shield middleware, bcrypt Basic Auth, runs/profiles/preview/lookup endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/okpyeon/modifier"
	"github.com/hazyhaar/okpyeon/observability"
	"github.com/hazyhaar/okpyeon/pipeline"
	"github.com/hazyhaar/okpyeon/record"
	"github.com/hazyhaar/okpyeon/shield"
	"github.com/hazyhaar/okpyeon/trace"
	"github.com/hazyhaar/okpyeon/wordbook"
)

func serveMain(ctx context.Context, logger *slog.Logger) error {
	pass := env("AUTH_PASSWORD", "")
	if pass == "" {
		return fmt.Errorf("AUTH_PASSWORD is required for serve")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// A run drives the browser, so its endpoint gets a tight limit; the
	// read-only endpoints stay unlimited.
	rl := shield.NewRateLimiter(map[string]shield.RateLimitConfig{
		"POST /api/runs":   {MaxRequests: 6, WindowSeconds: 60},
		"POST /api/lookup": {MaxRequests: 30, WindowSeconds: 60},
	}, "/health")
	rl.StartGC(ctx.Done())

	startedAt := time.Now()

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(rl) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, 200, a.journal.Health(req.Context(), startedAt))
	})

	r.Group(func(r chi.Router) {
		r.Use(basicAuth(hash))

		r.Get("/api/profiles", func(w http.ResponseWriter, req *http.Request) {
			names, err := a.svc.ListProfiles()
			if err != nil {
				apiError(w, err)
				return
			}
			if names == nil {
				names = []string{}
			}
			writeJSON(w, 200, names)
		})

		r.Post("/api/runs", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Profile        string `json:"profile"`
				IncludeRecords bool   `json:"include_records"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, 400, err)
				return
			}
			res, err := a.svc.Run(req.Context(), body.Profile)
			if err != nil {
				apiError(w, err)
				return
			}
			out := *res
			if !body.IncludeRecords {
				out.Entries = nil
				out.Usages = nil
			}
			writeJSON(w, 201, out)
		})

		r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
			f := &observability.RunFilter{Limit: queryInt(req, "limit", 50)}
			if s := req.URL.Query().Get("status"); s != "" {
				f.Status = &s
			}
			if p := req.URL.Query().Get("profile"); p != "" {
				f.Profile = &p
			}
			runs, err := a.svc.Runs(req.Context(), f)
			if err != nil {
				apiError(w, err)
				return
			}
			if runs == nil {
				runs = []*observability.Run{}
			}
			writeJSON(w, 200, runs)
		})

		r.Get("/api/runs/{runID}", func(w http.ResponseWriter, req *http.Request) {
			run, err := a.svc.GetRun(req.Context(), chi.URLParam(req, "runID"))
			if err != nil {
				apiError(w, err)
				return
			}
			if run == nil {
				writeError(w, 404, fmt.Errorf("run not found"))
				return
			}
			writeJSON(w, 200, run)
		})

		r.Get("/api/runs/{runID}/events", func(w http.ResponseWriter, req *http.Request) {
			events, err := a.svc.RunEvents(req.Context(), chi.URLParam(req, "runID"))
			if err != nil {
				apiError(w, err)
				return
			}
			if events == nil {
				events = []*observability.Event{}
			}
			writeJSON(w, 200, events)
		})

		r.Post("/api/preview", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Profile string `json:"profile"`
				Text    string `json:"text"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, 400, err)
				return
			}
			entries, err := a.svc.Preview(req.Context(), body.Profile, body.Text)
			if err != nil {
				apiError(w, err)
				return
			}
			writeJSON(w, 200, map[string]any{"count": len(entries), "entries": entries})
		})

		r.Post("/api/lookup", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Hanja []string `json:"hanja"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, 400, err)
				return
			}
			if len(body.Hanja) == 0 {
				writeError(w, 400, fmt.Errorf("hanja list is empty"))
				return
			}
			recs, err := a.svc.Lookup(req.Context(), body.Hanja)
			if err != nil {
				apiError(w, err)
				return
			}
			writeJSON(w, 200, recs)
		})

		r.Get("/api/traces", func(w http.ResponseWriter, req *http.Request) {
			entries, err := a.traceStore.Recent(req.Context(),
				queryInt(req, "limit", 100), req.URL.Query().Get("trace_id"))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if entries == nil {
				entries = []*trace.Entry{}
			}
			writeJSON(w, 200, entries)
		})
	})

	go retentionLoop(ctx, a, logger)

	srv := &http.Server{
		Addr:              ":" + env("PORT", "8086"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// A synchronous run holds its request while the browser walks
		// the whole batch.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// retentionLoop prunes old journal rows and SQL traces once at startup
// and then daily. RETENTION_DAYS=0 turns it off.
func retentionLoop(ctx context.Context, a *app, logger *slog.Logger) {
	days := envInt("RETENTION_DAYS", 30)
	if days <= 0 {
		return
	}

	clean := func() {
		err := observability.Cleanup(ctx, a.journalDB, observability.RetentionConfig{
			RunsDays:   days,
			EventsDays: days,
		})
		if err == nil {
			err = observability.Cleanup(ctx, a.traceDB, observability.RetentionConfig{
				TracesDays: days,
			})
		}
		if err != nil && ctx.Err() == nil {
			logger.Warn("retention cleanup", "error", err)
		}
	}

	clean()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			clean()
		}
	}
}

// basicAuth guards the API with one shared credential checked against a
// bcrypt hash. Any username passes; only the password counts.
func basicAuth(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, pass, ok := r.BasicAuth()
			if !ok || bcrypt.CompareHashAndPassword(hash, []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="okpyeon"`)
				writeJSON(w, 401, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// apiError maps pipeline sentinels to status codes; anything unmapped is
// a 500.
func apiError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrUnknownProfile):
		writeError(w, 404, err)
	case errors.Is(err, pipeline.ErrBadProfile),
		errors.Is(err, wordbook.ErrBadSpec),
		errors.Is(err, record.ErrBadSchema),
		errors.Is(err, record.ErrMissingKey),
		errors.Is(err, modifier.ErrUnknownModifier):
		writeError(w, 400, err)
	default:
		writeError(w, 500, err)
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
