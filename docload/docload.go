// CLAUDE:SUMMARY Loads wordbook input files (txt, md, html, pdf) and normalizes them to plain text with blank-line entry boundaries preserved.
// Package docload turns a wordbook input file into plain text the extractor
// can chunk. Entries are separated by blank lines, so unlike a generic text
// extractor the loaders here keep line structure intact: a paragraph break in
// the source stays a blank line in the output.
//
// Supported formats:
//   - .txt  — UTF-8 text (BOM stripped, line endings normalized, blank-line
//     runs squeezed to one)
//   - .md   — Markdown (same treatment; wordbook grammar lines are not markup)
//   - .html — sanitized, then converted to Markdown text
//   - .pdf  — text operators extracted per page, pages separated by blank lines
//
// Files without an extension are treated as plain text, which is how most
// wordbook files arrive.
package docload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/okpyeon/guard"
)

// Format identifies an input type.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatMD   Format = "md"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// Input is a wordbook file normalized to plain text.
type Input struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
	Text   string `json:"text"`
}

// Config configures the loader.
type Config struct {
	// MaxFileSize is the maximum input size (default: guard.MaxInputBytes).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Logger for debug messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = guard.MaxInputBytes
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Loader reads and normalizes wordbook input files.
type Loader struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Loader with the given configuration.
func New(cfg Config) *Loader {
	cfg.defaults()
	return &Loader{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Detect returns the input format based on file extension. An empty
// extension means plain text.
func (l *Loader) Detect(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case "", ".txt", ".text":
		return FormatTXT, nil
	case ".md", ".markdown":
		return FormatMD, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("docload: unsupported format: %q", ext)
	}
}

// Load reads a wordbook file and returns its normalized text.
func (l *Loader) Load(ctx context.Context, path string) (*Input, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("docload: stat %s: %w", path, err)
	}
	if info.Size() > l.cfg.MaxFileSize {
		return nil, fmt.Errorf("docload: %s: %d bytes (max %d)", path, info.Size(), l.cfg.MaxFileSize)
	}

	format, err := l.Detect(path)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("loading wordbook", "path", path, "format", format)

	var text string
	switch format {
	case FormatTXT, FormatMD:
		text, err = l.loadText(path)
	case FormatHTML:
		text, err = l.loadHTML(path)
	case FormatPDF:
		text, err = loadPDF(path)
	default:
		return nil, fmt.Errorf("docload: no loader for format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("docload: load %s (%s): %w", path, format, err)
	}

	return &Input{
		Path:   path,
		Format: format,
		Text:   text,
	}, nil
}

// SupportedFormats returns all supported format extensions.
func SupportedFormats() []string {
	return []string{"txt", "md", "html", "pdf"}
}

func (l *Loader) readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return guard.LimitedReadAll(f, l.cfg.MaxFileSize)
}

// joinEntryLines joins lines, squeezing runs of blank lines down to one and
// trimming blanks at both ends. A single blank line is the entry boundary
// every loader converges on.
func joinEntryLines(lines []string) string {
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		if line == "" {
			blanks++
			if len(out) == 0 || blanks > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blanks = 0
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
