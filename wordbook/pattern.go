// CLAUDE:SUMMARY Declarative line patterns: bare regex with named groups, or [regex, delimiter] pairs splitting one group into a list.
package wordbook

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/okpyeon/record"
)

type specKind uint8

const (
	specSingle specKind = iota
	specPair
)

// Spec is one declarative pattern specification, as written in a profile:
// either a bare regex string whose named capture groups become record
// fields, or a [regex, delimiter] pair whose single named group is split
// by the delimiter into a list field. Specs carry raw text only; shape
// and regex validation happen in CompileSpecs.
type Spec struct {
	kind  specKind
	parts []string
}

// Single returns a bare-regex spec.
func Single(pattern string) Spec {
	return Spec{kind: specSingle, parts: []string{pattern}}
}

// Delimited returns a [regex, delimiter] pair spec.
func Delimited(pattern, delimiter string) Spec {
	return Spec{kind: specPair, parts: []string{pattern, delimiter}}
}

// UnmarshalYAML accepts a scalar (bare regex) or a sequence of strings
// (pair). Sequence arity is checked in CompileSpecs so the error can name
// the offending pattern index.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var pattern string
		if err := node.Decode(&pattern); err != nil {
			return fmt.Errorf("wordbook: decode pattern: %w", err)
		}
		*s = Single(pattern)
		return nil
	case yaml.SequenceNode:
		var parts []string
		if err := node.Decode(&parts); err != nil {
			return fmt.Errorf("wordbook: decode pattern pair: %w", err)
		}
		*s = Spec{kind: specPair, parts: parts}
		return nil
	default:
		return fmt.Errorf("wordbook: line %d: pattern must be a regex string or a [regex, delimiter] pair: %w", node.Line, ErrBadSpec)
	}
}

// Pattern is a compiled, validated Spec ready for matching.
type Pattern struct {
	re        *regexp.Regexp
	delimiter string
	split     bool
	group     string // sole named group of a split pattern
}

// CompileSpecs validates and compiles an ordered pattern list. Any
// malformed spec fails the whole compilation with an error naming its
// index and wrapping ErrBadSpec; nothing is deferred to match time.
func CompileSpecs(specs []Spec) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(specs))
	for i, s := range specs {
		p, err := s.compile()
		if err != nil {
			return nil, fmt.Errorf("wordbook: pattern %d: %w", i, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func (s Spec) compile() (Pattern, error) {
	switch s.kind {
	case specSingle:
		re, err := compileAnchored(s.parts[0])
		if err != nil {
			return Pattern{}, err
		}
		return Pattern{re: re}, nil
	case specPair:
		if len(s.parts) != 2 {
			return Pattern{}, fmt.Errorf("pair must be [regex, delimiter], has %d elements: %w", len(s.parts), ErrBadSpec)
		}
		if s.parts[1] == "" {
			return Pattern{}, fmt.Errorf("pair delimiter is empty: %w", ErrBadSpec)
		}
		re, err := compileAnchored(s.parts[0])
		if err != nil {
			return Pattern{}, err
		}
		group := ""
		for _, name := range re.SubexpNames() {
			if name == "" {
				continue
			}
			if group != "" {
				return Pattern{}, fmt.Errorf("pair regex needs exactly one named group, has several: %w", ErrBadSpec)
			}
			group = name
		}
		if group == "" {
			return Pattern{}, fmt.Errorf("pair regex needs exactly one named group, has none: %w", ErrBadSpec)
		}
		return Pattern{re: re, delimiter: s.parts[1], split: true, group: group}, nil
	default:
		return Pattern{}, fmt.Errorf("unknown spec shape: %w", ErrBadSpec)
	}
}

// compileAnchored wraps the pattern so matching starts at the beginning
// of the line, leaving the pattern's own groups untouched.
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty regex: %w", ErrBadSpec)
	}
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, fmt.Errorf("compile regex %q: %v: %w", pattern, err, ErrBadSpec)
	}
	return re, nil
}

// Match applies the pattern to one line. An unmatched line yields an
// empty record, never an error. For a split pattern the sole named
// group's capture is split by the delimiter into a list value; otherwise
// every participating named group becomes a text field.
func (p Pattern) Match(line string) record.Record {
	idx := p.re.FindStringSubmatchIndex(line)
	fields := record.New()
	if idx == nil {
		return fields
	}
	for gi, name := range p.re.SubexpNames() {
		if name == "" {
			continue
		}
		start, end := idx[2*gi], idx[2*gi+1]
		if start < 0 {
			continue // group did not participate in the match
		}
		captured := line[start:end]
		if p.split && name == p.group {
			fields.Set(name, record.List(strings.Split(captured, p.delimiter)...))
		} else {
			fields.Set(name, record.Text(captured))
		}
	}
	return fields
}
