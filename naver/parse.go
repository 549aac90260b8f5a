// CLAUDE:SUMMARY Pure-HTML field extraction from dictionary search and entry pages; no browser involved.
package naver

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/okpyeon/extract"
	"github.com/hazyhaar/okpyeon/record"
)

// Selectors for the letter search page, the entry page, and the word
// search page. The dictionary renders client-side; these run against the
// DOM snapshot the browser manager takes after the page settles.
var (
	selLetterLink = extract.MustCompile("#searchPage_letter .row .hanja_word .hanja_link")

	selEntryMeans  = extract.MustCompile(".component_entry .entry_title .mean")
	selEntryInfos  = extract.MustCompile(".component_entry .entry_infos .info_item")
	selEntryStroke = extract.MustCompile(".component_entry .entry_infos .stroke span.word")
	selEntryUsages = extract.MustCompile(".component_entry .entry_condition .unit_tooltip")
	selInfoCate    = extract.MustCompile(".cate")
	selInfoDesc    = extract.MustCompile(".desc")
	selInfoButton  = extract.MustCompile("button")

	selWordRows  = extract.MustCompile("#searchPage_word .row")
	selWordLink  = extract.MustCompile(".hanja_word .hanja_link")
	selWordMeans = extract.MustCompile(".mean_list .mean")
)

// Info category labels on the entry page.
const (
	cateRadical   = "부수"
	cateFormation = "모양자"
	cateUnicode   = "유니코드"
)

// letterID pulls the dictionary entry ID for hanja out of a search page.
// The first result row must show exactly the character searched for;
// anything else (no rows, a look-alike, a word result) is a miss.
func letterID(doc *html.Node, hanja string) (string, bool) {
	link := selLetterLink.First(doc)
	if link == nil {
		return "", false
	}
	if extract.Text(link) != Standardize(hanja) {
		return "", false
	}
	return hrefTail(extract.Attr(link, "href")), true
}

// parseEntry extracts the detail fields from an entry page. Only fields
// actually found end up in the record; the dictionary omits sections for
// rare characters and absent stays absent.
func parseEntry(doc *html.Node) record.Record {
	rec := record.New()

	if means := extract.Texts(selEntryMeans.All(doc)); len(means) > 0 {
		rec.Set(FieldMeaning, record.Text(strings.Join(means, ", ")))
	}

	for _, item := range selEntryInfos.All(doc) {
		cate := extract.Text(selInfoCate.First(item))
		switch cate {
		case cateRadical:
			if t := extract.Text(selInfoButton.First(item)); t != "" {
				rec.Set(FieldRadical, record.Text(t))
			}
		case cateFormation:
			if letters := formationLetters(extract.Text(selInfoDesc.First(item))); len(letters) > 0 {
				rec.Set(FieldFormationLetter, record.List(letters...))
			}
		case cateUnicode:
			if t := extract.Text(selInfoDesc.First(item)); t != "" {
				rec.Set(FieldUnicode, record.Text(t))
			}
		}
	}

	if stroke := extract.Text(selEntryStroke.First(doc)); stroke != "" {
		rec.Set(FieldStrokeCount, record.Text(strings.TrimSuffix(stroke, "획")))
	}

	if usages := extract.Texts(selEntryUsages.All(doc)); len(usages) > 0 {
		rec.Set(FieldUsage, record.List(usages...))
	}

	return rec
}

// formationLetters turns the 모양자 description ("木 (나무 목) + 交 (사귈 교)")
// into the component characters: first rune of each " + "-separated part.
func formationLetters(desc string) []string {
	if desc == "" {
		return nil
	}
	parts := strings.Split(desc, " + ")
	letters := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		r := []rune(p)
		letters = append(letters, string(r[0]))
	}
	return letters
}

// wordEntry is one resolved usage word.
type wordEntry struct {
	meaning string
	id      string
}

// wordLookup pulls the first matching word row out of a word search
// page: its link text must equal the word searched for.
func wordLookup(doc *html.Node, word string) (wordEntry, bool) {
	want := Standardize(word)
	for _, row := range selWordRows.All(doc) {
		link := selWordLink.First(row)
		if link == nil || extract.Text(link) != want {
			continue
		}
		return wordEntry{
			meaning: strings.Join(extract.Texts(selWordMeans.All(row)), ", "),
			id:      hrefTail(extract.Attr(link, "href")),
		}, true
	}
	return wordEntry{}, false
}

// hrefTail returns the last path segment of a link target, which is how
// the dictionary encodes entry IDs.
func hrefTail(href string) string {
	if href == "" {
		return ""
	}
	parts := strings.Split(href, "/")
	return parts[len(parts)-1]
}
