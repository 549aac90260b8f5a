// CLAUDE:SUMMARY Service: profile directory management plus the business methods behind the HTTP and MCP surfaces.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hazyhaar/okpyeon/guard"
	"github.com/hazyhaar/okpyeon/modifier"
	"github.com/hazyhaar/okpyeon/observability"
	"github.com/hazyhaar/okpyeon/record"
	"github.com/hazyhaar/okpyeon/wordbook"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// ProfilesDir holds the profile YAML files, one per profile.
	ProfilesDir string

	// Registry resolves modifier references. Defaults to the built-ins.
	Registry *modifier.Registry

	// Runner executes compiled plans.
	Runner *Runner

	// Journal backs the run-history operations. Optional.
	Journal *observability.Journal

	// Logger for request-level messages.
	Logger *slog.Logger
}

// Service exposes the pipeline over both transports: run a profile,
// preview extraction, query the dictionary, inspect past runs.
type Service struct {
	profilesDir string
	registry    *modifier.Registry
	runner      *Runner
	journal     *observability.Journal
	log         *slog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.ProfilesDir == "" {
		cfg.ProfilesDir = "profiles"
	}
	if cfg.Registry == nil {
		cfg.Registry = modifier.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = NewRunner(Config{Journal: cfg.Journal, Logger: cfg.Logger})
	}
	return &Service{
		profilesDir: cfg.ProfilesDir,
		registry:    cfg.Registry,
		runner:      cfg.Runner,
		journal:     cfg.Journal,
		log:         cfg.Logger,
	}
}

// ListProfiles returns the names of the profiles on disk, sorted.
func (s *Service) ListProfiles() ([]string, error) {
	entries, err := os.ReadDir(s.profilesDir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read profiles dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

// LoadPlan loads a named profile from the profiles directory and
// compiles it. The name is untrusted input and may not escape the
// directory.
func (s *Service) LoadPlan(name string) (*Plan, error) {
	if err := guard.ValidateIdentifier(name); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownProfile, name, err)
	}
	path, err := s.profilePath(name)
	if err != nil {
		return nil, err
	}
	prof, err := LoadProfile(path)
	if err != nil {
		return nil, err
	}
	return prof.Compile(s.registry)
}

func (s *Service) profilePath(name string) (string, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path, err := guard.SafePath(s.profilesDir, name+ext)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrUnknownProfile, name, err)
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownProfile, name)
}

// Run loads, compiles and executes a named profile.
func (s *Service) Run(ctx context.Context, name string) (*Result, error) {
	plan, err := s.LoadPlan(name)
	if err != nil {
		return nil, err
	}
	return s.runner.Run(ctx, plan)
}

// Preview extracts records from the given text with a named profile's
// patterns, without touching the collaborator or the output directory.
// It shows what a run would feed the enrichment stage.
func (s *Service) Preview(ctx context.Context, name, text string) ([]record.Record, error) {
	plan, err := s.LoadPlan(name)
	if err != nil {
		return nil, err
	}
	return wordbook.Extract(text, plan.Patterns, plan.Profile.Delimiter), nil
}

// Lookup queries the dictionary collaborator for the given letters.
func (s *Service) Lookup(ctx context.Context, hanja []string) ([]record.Record, error) {
	return s.runner.Client().LookupEntries(ctx, hanja)
}

// Runs returns past runs matching the filter.
func (s *Service) Runs(ctx context.Context, f *observability.RunFilter) ([]*observability.Run, error) {
	if s.journal == nil {
		return nil, ErrNoJournal
	}
	if f == nil {
		f = &observability.RunFilter{}
	}
	return s.journal.Runs(ctx, f)
}

// GetRun returns one run by ID, or nil if it does not exist.
func (s *Service) GetRun(ctx context.Context, runID string) (*observability.Run, error) {
	if s.journal == nil {
		return nil, ErrNoJournal
	}
	return s.journal.GetRun(ctx, runID)
}

// RunEvents returns a run's journal entries in order.
func (s *Service) RunEvents(ctx context.Context, runID string) ([]*observability.Event, error) {
	if s.journal == nil {
		return nil, ErrNoJournal
	}
	return s.journal.Events(ctx, runID)
}

// Journal exposes the journal for health checks. Nil when none is
// configured.
func (s *Service) Journal() *observability.Journal { return s.journal }
