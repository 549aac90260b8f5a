// CLAUDE:SUMMARY Runner executes a compiled Plan end to end: load, extract, enrich, merge, modify, export.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/okpyeon/docload"
	"github.com/hazyhaar/okpyeon/export"
	"github.com/hazyhaar/okpyeon/guard"
	"github.com/hazyhaar/okpyeon/idgen"
	"github.com/hazyhaar/okpyeon/modifier"
	"github.com/hazyhaar/okpyeon/naver"
	"github.com/hazyhaar/okpyeon/observability"
	"github.com/hazyhaar/okpyeon/record"
	"github.com/hazyhaar/okpyeon/wordbook"
)

// Config configures a Runner.
type Config struct {
	// InputRoot is the directory wordbook files are resolved under.
	// Profile input paths may not escape it.
	InputRoot string

	// Loader normalizes input files to text. Defaults to a plain loader.
	Loader *docload.Loader

	// Client is the dictionary collaborator used when a profile asks
	// for enrichment. Defaults to the offline Null client.
	Client naver.Client

	// Journal records runs and stage events. Optional.
	Journal *observability.Journal

	// Logger for progress messages.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.InputRoot == "" {
		c.InputRoot = filepath.Join("data", "input")
	}
	if c.Loader == nil {
		c.Loader = docload.New(docload.Config{Logger: c.Logger})
	}
	if c.Client == nil {
		c.Client = naver.NewNull()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Runner executes compiled plans.
type Runner struct {
	cfg     Config
	loader  *docload.Loader
	client  naver.Client
	journal *observability.Journal
	log     *slog.Logger

	newRunID idgen.Generator // fallback when no journal is attached
	newStamp idgen.Generator // export artifact stamps
}

// NewRunner creates a Runner.
func NewRunner(cfg Config) *Runner {
	cfg.defaults()
	return &Runner{
		cfg:      cfg,
		loader:   cfg.Loader,
		client:   cfg.Client,
		journal:  cfg.Journal,
		log:      cfg.Logger,
		newRunID: idgen.Prefixed("run_", idgen.Default),
		newStamp: idgen.Timestamped(idgen.NanoID(4)),
	}
}

// Client returns the runner's dictionary collaborator.
func (r *Runner) Client() naver.Client { return r.client }

// Result is the outcome of one pipeline run.
type Result struct {
	RunID      string             `json:"run_id"`
	Profile    string             `json:"profile"`
	Input      string             `json:"input"`
	Entries    []record.Record    `json:"entries,omitempty"`
	Usages     []record.Record    `json:"usages,omitempty"`
	EntryCount int                `json:"entry_count"`
	UsageCount int                `json:"usage_count"`
	Warnings   []modifier.Warning `json:"warnings,omitempty"`
	Files      []string           `json:"files,omitempty"`
	ElapsedMs  int64              `json:"elapsed_ms"`
}

// Run executes the plan: load the input file, extract the two record
// streams, enrich them through the collaborator, merge the primary
// stream, run the modifier chains and export. The first fatal error
// aborts the run; modifier failures only accumulate as warnings.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*Result, error) {
	prof := plan.Profile
	started := time.Now()

	runID := r.startRun(ctx, prof)
	res := &Result{RunID: runID, Profile: prof.Name, Input: prof.Input}
	r.log.Info("run started", "run_id", runID, "profile", prof.Name, "input", prof.Input)

	// Load.
	t0 := time.Now()
	path, err := guard.SafePath(r.cfg.InputRoot, prof.Input)
	if err != nil {
		return nil, r.fail(ctx, runID, observability.StageLoad, err)
	}
	in, err := r.loader.Load(ctx, path)
	if err != nil {
		return nil, r.fail(ctx, runID, observability.StageLoad, err)
	}
	r.event(runID, observability.StageLoad,
		fmt.Sprintf("loaded %s (%s, %d bytes)", prof.Input, in.Format, len(in.Text)), time.Since(t0))

	// Extract.
	t0 = time.Now()
	primary := wordbook.Extract(in.Text, plan.Patterns, prof.Delimiter)
	r.event(runID, observability.StageExtract,
		fmt.Sprintf("extracted %d entries", len(primary)), time.Since(t0))

	// Enrich. Every entry must carry the identifying field before we go
	// near the dictionary; a hole here would desynchronize the merge.
	t0 = time.Now()
	keys, pairs, err := collectKeys(primary)
	if err != nil {
		return nil, r.fail(ctx, runID, observability.StageEnrich, err)
	}
	client := r.client
	if prof.Enrich == EnrichNull {
		client = naver.NewNull()
	}
	secondary, err := client.LookupEntries(ctx, keys)
	if err != nil {
		return nil, r.fail(ctx, runID, observability.StageEnrich, err)
	}
	usages, err := client.LookupUsages(ctx, pairs)
	if err != nil {
		return nil, r.fail(ctx, runID, observability.StageEnrich, err)
	}
	if len(secondary) != len(primary) {
		return nil, r.fail(ctx, runID, observability.StageEnrich,
			fmt.Errorf("%w: %d entries in, %d out", ErrAlignment, len(primary), len(secondary)))
	}
	if len(usages) != len(pairs) {
		return nil, r.fail(ctx, runID, observability.StageEnrich,
			fmt.Errorf("%w: %d usage pairs in, %d out", ErrAlignment, len(pairs), len(usages)))
	}
	r.event(runID, observability.StageEnrich,
		fmt.Sprintf("enriched %d entries, %d usage sets (%s)", len(secondary), len(usages), prof.Enrich), time.Since(t0))

	// Merge. Only the primary stream merges; usage records are
	// collaborator output and go straight to the modifiers.
	t0 = time.Now()
	merged, err := record.Merge(plan.Schema, primary, secondary)
	if err != nil {
		return nil, r.fail(ctx, runID, observability.StageMerge, err)
	}
	r.event(runID, observability.StageMerge,
		fmt.Sprintf("merged %d records", len(merged)), time.Since(t0))

	// Modify.
	t0 = time.Now()
	entries, entryWarns := modifier.Apply(merged, plan.EntryMods, r.log)
	usages, usageWarns := modifier.Apply(usages, plan.UsageMods, r.log)
	res.Warnings = append(entryWarns, usageWarns...)
	for _, w := range res.Warnings {
		r.warning(runID, observability.StageModify, "modifier failed", w)
	}
	r.event(runID, observability.StageModify,
		fmt.Sprintf("modified: %d entries, %d usage records, %d warnings",
			len(entries), len(usages), len(res.Warnings)), time.Since(t0))

	res.Entries = entries
	res.Usages = usages
	res.EntryCount = len(entries)
	res.UsageCount = len(usages)

	// Export.
	t0 = time.Now()
	files, err := r.export(plan, entries, usages)
	if err != nil {
		return nil, r.fail(ctx, runID, observability.StageExport, err)
	}
	res.Files = files
	r.event(runID, observability.StageExport,
		fmt.Sprintf("wrote %d files (%s)", len(files), prof.Export.Format), time.Since(t0))

	res.ElapsedMs = time.Since(started).Milliseconds()
	if r.journal != nil {
		if err := r.journal.CompleteRun(ctx, runID, res.EntryCount, res.UsageCount, len(res.Warnings)); err != nil {
			r.log.Warn("journal: complete run", "run_id", runID, "error", err)
		}
	}
	r.log.Info("run completed", "run_id", runID, "profile", prof.Name,
		"entries", res.EntryCount, "usages", res.UsageCount,
		"warnings", len(res.Warnings), "elapsed_ms", res.ElapsedMs)
	return res, nil
}

// collectKeys pulls the identifying field and the usage word list out of
// every extracted entry, preserving order.
func collectKeys(recs []record.Record) ([]string, []naver.UsagePair, error) {
	keys := make([]string, 0, len(recs))
	pairs := make([]naver.UsagePair, 0, len(recs))
	for i, rec := range recs {
		if !rec.Present(record.KeyHanja) {
			return nil, nil, fmt.Errorf("pipeline: entry %d: %w", i, record.ErrMissingKey)
		}
		h := rec.Get(record.KeyHanja).Text()
		keys = append(keys, h)
		pairs = append(pairs, naver.UsagePair{Hanja: h, Words: usageWords(rec.Get(naver.FieldUsage))})
	}
	return keys, pairs, nil
}

// usageWords flattens a usage value: a list as-is, a single word as a
// one-element list, absent as none.
func usageWords(v record.Value) []string {
	switch v.Kind() {
	case record.KindList:
		return v.List()
	case record.KindText:
		return []string{v.Text()}
	default:
		return nil
	}
}

// export writes the two streams in the profile's format and returns the
// created file paths.
func (r *Runner) export(plan *Plan, entries, usages []record.Record) ([]string, error) {
	prof := plan.Profile
	if prof.Export.Format == FormatNone {
		return nil, nil
	}
	if err := os.MkdirAll(prof.Export.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: create output dir: %w", err)
	}
	// Timestamp plus a random tail: two runs of the same profile in the
	// same second must not overwrite each other's files.
	base := filepath.Join(prof.Export.OutDir, prof.Name+"_"+r.newStamp())

	entryCols := export.Columns(plan.Schema)
	switch prof.Export.Format {
	case FormatCSV:
		files := []string{base + "_entries.csv"}
		if err := export.WriteCSVFile(files[0], entryCols, entries); err != nil {
			return nil, err
		}
		if len(usages) > 0 {
			path := base + "_usages.csv"
			if err := export.WriteCSVFile(path, export.DeriveColumns(usages), usages); err != nil {
				return nil, err
			}
			files = append(files, path)
		}
		return files, nil
	case FormatXLSX:
		sheets := []export.Sheet{{Name: "entries", Columns: entryCols, Records: entries}}
		if len(usages) > 0 {
			sheets = append(sheets, export.Sheet{Name: "usages", Columns: export.DeriveColumns(usages), Records: usages})
		}
		path := base + ".xlsx"
		if err := export.WriteXLSXFile(path, sheets...); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	return nil, nil
}

// startRun opens a journal run, or mints a bare run ID when no journal
// is attached.
func (r *Runner) startRun(ctx context.Context, prof *Profile) string {
	if r.journal == nil {
		return r.newRunID()
	}
	run, err := r.journal.StartRun(ctx, prof.Name, prof.Input)
	if err != nil {
		r.log.Warn("journal: start run", "profile", prof.Name, "error", err)
		return r.newRunID()
	}
	return run.RunID
}

func (r *Runner) event(runID, stage, msg string, d time.Duration) {
	r.log.Debug("stage done", "run_id", runID, "stage", stage, "message", msg, "duration_ms", d.Milliseconds())
	if r.journal == nil {
		return
	}
	r.journal.LogEvent(r.journal.NewEvent(runID, stage, msg, d))
}

func (r *Runner) warning(runID, stage, msg string, detail any) {
	if r.journal == nil {
		return
	}
	r.journal.LogEvent(r.journal.NewWarning(runID, stage, msg, detail))
}

// fail closes the run as failed and returns the stage-tagged error.
func (r *Runner) fail(ctx context.Context, runID, stage string, err error) error {
	wrapped := fmt.Errorf("pipeline: %s: %w", stage, err)
	r.log.Error("run failed", "run_id", runID, "stage", stage, "error", err)
	if r.journal != nil {
		if jerr := r.journal.FailRun(ctx, runID, wrapped); jerr != nil {
			r.log.Warn("journal: fail run", "run_id", runID, "error", jerr)
		}
	}
	return wrapped
}
