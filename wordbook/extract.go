// CLAUDE:SUMMARY Extract splits wordbook text into chunks and applies patterns positionally, one record per chunk.
package wordbook

import (
	"strings"

	"github.com/hazyhaar/okpyeon/record"
)

// DefaultDelimiter separates entries in a wordbook file: one blank line.
const DefaultDelimiter = "\n\n"

// Extract splits text on delim (DefaultDelimiter when empty) into chunks
// and builds one record per chunk, in chunk order. Each chunk is trimmed
// of surrounding whitespace and split into lines; pattern i matches
// line i, and matched fields accumulate into the chunk's record with
// later patterns winning on key collision.
//
// Extraction is tolerant: unmatched lines contribute no fields, and a
// chunk with fewer lines than patterns simply skips the surplus patterns.
// The record count always equals the chunk count.
func Extract(text string, patterns []Pattern, delim string) []record.Record {
	if delim == "" {
		delim = DefaultDelimiter
	}
	chunks := strings.Split(text, delim)
	out := make([]record.Record, 0, len(chunks))
	for _, chunk := range chunks {
		lines := strings.Split(strings.TrimSpace(chunk), "\n")
		rec := record.New()
		for i, p := range patterns {
			if i >= len(lines) {
				break
			}
			for name, v := range p.Match(lines[i]) {
				rec.Set(name, v)
			}
		}
		out = append(out, rec)
	}
	return out
}
