// CLAUDE:SUMMARY PDF text extractor using pdfcpu — parses page content streams, keeping line breaks for wordbook chunking.
package docload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// loadPDF extracts text from a PDF wordbook. Each page becomes one block,
// blocks separated by a blank line. Inside a page, text-positioning
// operators become line breaks; profiles reading PDF sources usually pair
// this with a single-newline entry delimiter.
func loadPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		text := extractPage(ctx, pageNr)
		if text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("no text content found in PDF")
	}
	return normalizeText(strings.Join(pages, "\n\n")), nil
}

// extractPage extracts text from a single page via its content stream.
func extractPage(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return parseContentStream(data)
}

// pdfStringRe matches PDF string literals, including escaped parentheses.
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// parseContentStream pulls text out of PDF content stream operators.
// Tj/TJ show text; ', Td, TD and T* advance to a new line.
func parseContentStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}

		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFString(m[1]))
			}

		case bytes.HasSuffix(line, []byte("Td")),
			bytes.HasSuffix(line, []byte("TD")),
			bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return tidyPDFText(sb.String())
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			case '(':
				sb.WriteByte('(')
			case ')':
				sb.WriteByte(')')
			default:
				// Octal escape (e.g. \040 for space).
				if raw[i] >= '0' && raw[i] <= '7' {
					val := int(raw[i] - '0')
					if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
						i++
						val = val*8 + int(raw[i]-'0')
						if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
							i++
							val = val*8 + int(raw[i]-'0')
						}
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(raw[i])
				}
			}
		} else {
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

// tidyPDFText collapses whitespace within lines but keeps the line
// structure intact.
func tidyPDFText(text string) string {
	rawLines := strings.Split(text, "\n")
	lines := make([]string, 0, len(rawLines))
	for _, line := range rawLines {
		line = strings.Map(func(r rune) rune {
			if r == '\t' {
				return ' '
			}
			if !unicode.IsPrint(r) {
				return -1
			}
			return r
		}, line)
		lines = append(lines, strings.Join(strings.Fields(line), " "))
	}
	return joinEntryLines(lines)
}
