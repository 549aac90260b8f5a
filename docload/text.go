package docload

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// loadText reads a plain-text or Markdown wordbook. Content passes through
// with three normalizations: the UTF-8 BOM is stripped, CR/CRLF line endings
// become LF, and the text is recomposed to NFC. The last one matters for
// Korean: files authored on macOS arrive with decomposed jamo, which would
// break pattern matching and dictionary lookups keyed on composed syllables.
// Runs of blank lines squeeze down to one and trailing blanks go, so a file
// ending in an extra newline does not produce a phantom empty entry.
func (l *Loader) loadText(path string) (string, error) {
	data, err := l.readAll(path)
	if err != nil {
		return "", err
	}
	text := normalizeText(string(data))
	return joinEntryLines(strings.Split(text, "\n")), nil
}

func normalizeText(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text)
}
