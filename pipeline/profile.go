// CLAUDE:SUMMARY Profile YAML config and its compilation into a runnable Plan.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/okpyeon/guard"
	"github.com/hazyhaar/okpyeon/modifier"
	"github.com/hazyhaar/okpyeon/record"
	"github.com/hazyhaar/okpyeon/wordbook"
)

// Enrichment modes.
const (
	EnrichDict = "dict" // look letters and usage words up on the dictionary
	EnrichNull = "null" // offline: records keep only what extraction produced
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatNone = "none"
)

// Profile is one pipeline configuration: which file to load, how to
// slice it into entries, what shape the output records have, and what
// happens downstream of extraction.
type Profile struct {
	Name      string          `yaml:"name"`
	Input     string          `yaml:"input"`     // path relative to the input root
	Delimiter string          `yaml:"delimiter"` // entry separator, default blank line
	Patterns  []wordbook.Spec `yaml:"patterns"`
	Schema    string          `yaml:"schema"` // pipe-separated keys, without "hanja"
	Enrich    string          `yaml:"enrich"` // dict | null
	Modifiers ModifierConfig  `yaml:"modifiers"`
	Export    ExportConfig    `yaml:"export"`
}

// ModifierConfig names the post-merge cleanup chains, one per stream.
type ModifierConfig struct {
	Entries []modifier.Ref `yaml:"entries"`
	Usages  []modifier.Ref `yaml:"usages"`
}

// ExportConfig controls where the final records land.
type ExportConfig struct {
	Format string `yaml:"format"` // csv | xlsx | none
	OutDir string `yaml:"out_dir"`
}

// DefaultProfile returns sane defaults.
func DefaultProfile() *Profile {
	return &Profile{
		Delimiter: wordbook.DefaultDelimiter,
		Enrich:    EnrichDict,
		Export: ExportConfig{
			Format: FormatCSV,
			OutDir: filepath.Join("data", "output"),
		},
	}
}

// LoadProfile reads and parses a YAML profile. Returns DefaultProfile
// merged with the file. A missing name falls back to the file's base
// name.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("pipeline: parse profile %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, p.Validate()
}

// Validate checks that required fields are present and values are sane.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrBadProfile)
	}
	if err := guard.ValidateIdentifier(p.Name); err != nil {
		return fmt.Errorf("%w: name %q: %v", ErrBadProfile, p.Name, err)
	}
	if p.Input == "" {
		return fmt.Errorf("%w: input is required", ErrBadProfile)
	}
	if len(p.Patterns) == 0 {
		return fmt.Errorf("%w: at least one pattern is required", ErrBadProfile)
	}
	if p.Schema == "" {
		return fmt.Errorf("%w: schema is required", ErrBadProfile)
	}
	switch p.Enrich {
	case EnrichDict, EnrichNull:
	default:
		return fmt.Errorf("%w: unsupported enrich mode %q (use dict or null)", ErrBadProfile, p.Enrich)
	}
	switch p.Export.Format {
	case FormatCSV, FormatXLSX, FormatNone:
	default:
		return fmt.Errorf("%w: unsupported export format %q (use csv, xlsx or none)", ErrBadProfile, p.Export.Format)
	}
	if p.Export.Format != FormatNone && p.Export.OutDir == "" {
		return fmt.Errorf("%w: export.out_dir is required for format %q", ErrBadProfile, p.Export.Format)
	}
	return nil
}

// Plan is a compiled profile: patterns, schema and modifier chains
// resolved, ready to hand to a Runner.
type Plan struct {
	Profile   *Profile
	Patterns  []wordbook.Pattern
	Schema    record.Schema
	EntryMods []modifier.Modifier
	UsageMods []modifier.Modifier
}

// Compile validates the profile and resolves its patterns, schema and
// modifier references against the registry.
func (p *Profile) Compile(reg *modifier.Registry) (*Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	pats, err := wordbook.CompileSpecs(p.Patterns)
	if err != nil {
		return nil, fmt.Errorf("pipeline: profile %s: %w", p.Name, err)
	}
	schema, err := record.ParseSchema(p.Schema)
	if err != nil {
		return nil, fmt.Errorf("pipeline: profile %s: %w", p.Name, err)
	}
	entryMods, err := reg.Build(p.Modifiers.Entries)
	if err != nil {
		return nil, fmt.Errorf("pipeline: profile %s: entry modifiers: %w", p.Name, err)
	}
	usageMods, err := reg.Build(p.Modifiers.Usages)
	if err != nil {
		return nil, fmt.Errorf("pipeline: profile %s: usage modifiers: %w", p.Name, err)
	}
	return &Plan{
		Profile:   p,
		Patterns:  pats,
		Schema:    schema,
		EntryMods: entryMods,
		UsageMods: usageMods,
	}, nil
}
