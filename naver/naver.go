// CLAUDE:SUMMARY Collaborator contract for dictionary enrichment: batched positional lookups, offline Null implementation.
// Package naver enriches wordbook entries from the Naver Hanja dictionary.
//
// The pipeline talks to it through the Client interface: two batched,
// blocking lookups whose results align positionally with their inputs. A
// character or word the dictionary cannot resolve yields a record whose
// detail fields are absent — never an error — so gaps in the dictionary
// flow through the merge as absent values instead of aborting the run.
//
// Dict is the real implementation, driving a stealth headless Chrome
// (the dictionary is a client-rendered app; plain HTTP gets an empty
// shell) with an SQLite cache in front of it. Null serves offline runs.
package naver

import (
	"context"

	"golang.org/x/text/unicode/norm"

	"github.com/hazyhaar/okpyeon/record"
)

// Field names a letter lookup can fill.
const (
	FieldMeaning         = "meaning"
	FieldRadical         = "radical"
	FieldStrokeCount     = "stroke_count"
	FieldFormationLetter = "formation_letter"
	FieldUnicode         = "unicode"
	FieldUsage           = "usage"
	FieldNaverID         = "naver_hanja_id"
)

// Field names of a usage lookup record, beyond the identifying field.
const (
	FieldWords        = "words"
	FieldWordMeanings = "word_meanings"
	FieldWordIDs      = "naver_word_ids"
)

// UsagePair asks for the dictionary entries of the usage words attached
// to one wordbook entry.
type UsagePair struct {
	Hanja string   `json:"hanja"`
	Words []string `json:"words"`
}

// Client is the enrichment collaborator consumed by the pipeline.
//
// Both lookups return exactly one record per input, in input order; the
// pipeline zips them against its local records by position. Errors are
// reserved for transport failures (browser, navigation, cache I/O) and
// abort the run; "not in the dictionary" is not an error.
type Client interface {
	// LookupEntries resolves each hanja to its dictionary detail record.
	// Every returned record carries the identifying field; unresolved
	// characters carry nothing else.
	LookupEntries(ctx context.Context, hanja []string) ([]record.Record, error)

	// LookupUsages resolves the usage words of each pair. Each returned
	// record carries the identifying field, the word list, and aligned
	// per-word meanings and dictionary IDs (empty strings where a word
	// is unresolved, so the lists stay index-aligned).
	LookupUsages(ctx context.Context, pairs []UsagePair) ([]record.Record, error)
}

// Standardize canonicalizes a hanja string to NFC. Files authored on
// macOS arrive with decomposed codepoints; cache keys, URL building and
// the search-result equality check all require the composed form.
func Standardize(s string) string {
	return norm.NFC.String(s)
}

// Null is the offline Client: every lookup succeeds with detail fields
// absent. Profiles select it to run extraction and merge without a
// browser, and tests use it as the no-enrichment baseline.
type Null struct{}

// NewNull returns the offline client.
func NewNull() Null { return Null{} }

// LookupEntries returns one record per hanja holding only the
// identifying field.
func (Null) LookupEntries(_ context.Context, hanja []string) ([]record.Record, error) {
	out := make([]record.Record, 0, len(hanja))
	for _, h := range hanja {
		rec := record.New()
		rec.Set(record.KeyHanja, record.Text(Standardize(h)))
		out = append(out, rec)
	}
	return out, nil
}

// LookupUsages returns one record per pair echoing the requested words,
// with meanings and IDs absent.
func (Null) LookupUsages(_ context.Context, pairs []UsagePair) ([]record.Record, error) {
	out := make([]record.Record, 0, len(pairs))
	for _, p := range pairs {
		rec := record.New()
		rec.Set(record.KeyHanja, record.Text(Standardize(p.Hanja)))
		rec.Set(FieldWords, record.List(p.Words...))
		out = append(out, rec)
	}
	return out, nil
}
