// CLAUDE:SUMMARY Compiled CSS selector engine over x/net/html for field extraction from fetched pages.
package extract

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parse parses an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}
	return doc, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// Selector is a compiled CSS selector covering the subset the extractors
// need:
//
//	tag, .class, #id, tag.class, tag#id, .a.b (multiple classes),
//	tag[attr], tag[attr=val], and descendant chains separated by spaces.
type Selector struct {
	src   string
	parts []part
}

type part struct {
	tag     string
	id      string
	classes []string
	attrKey string
	attrVal string
}

// Compile parses a selector string. Unsupported or empty selectors are
// rejected here so lookups never fail at query time.
func Compile(sel string) (Selector, error) {
	fields := strings.Fields(sel)
	if len(fields) == 0 {
		return Selector{}, fmt.Errorf("extract: empty selector")
	}
	parts := make([]part, 0, len(fields))
	for _, f := range fields {
		p, err := compilePart(f)
		if err != nil {
			return Selector{}, fmt.Errorf("extract: selector %q: %w", sel, err)
		}
		parts = append(parts, p)
	}
	return Selector{src: sel, parts: parts}, nil
}

// MustCompile is Compile for selectors known at build time; it panics on
// error.
func MustCompile(sel string) Selector {
	s, err := Compile(sel)
	if err != nil {
		panic(err)
	}
	return s
}

func compilePart(f string) (part, error) {
	var p part
	src := f

	if idx := strings.IndexByte(f, '['); idx >= 0 {
		if !strings.HasSuffix(f, "]") {
			return part{}, fmt.Errorf("unterminated attribute selector %q", src)
		}
		attr := f[idx+1 : len(f)-1]
		f = f[:idx]
		if eq := strings.IndexByte(attr, '='); eq >= 0 {
			p.attrKey = attr[:eq]
			p.attrVal = strings.Trim(attr[eq+1:], `"'`)
		} else {
			p.attrKey = attr
		}
		if p.attrKey == "" {
			return part{}, fmt.Errorf("empty attribute name in %q", src)
		}
	}

	if idx := strings.IndexByte(f, '#'); idx >= 0 {
		rest := f[idx+1:]
		if dot := strings.IndexByte(rest, '.'); dot >= 0 {
			p.id = rest[:dot]
			p.classes = splitClasses(rest[dot+1:])
		} else {
			p.id = rest
		}
		f = f[:idx]
		if p.id == "" {
			return part{}, fmt.Errorf("empty id")
		}
	}

	if idx := strings.IndexByte(f, '.'); idx >= 0 {
		p.classes = append(p.classes, splitClasses(f[idx+1:])...)
		f = f[:idx]
		for _, c := range p.classes {
			if c == "" {
				return part{}, fmt.Errorf("empty class")
			}
		}
	}

	p.tag = f
	if p.tag == "" && p.id == "" && len(p.classes) == 0 && p.attrKey == "" {
		return part{}, fmt.Errorf("empty selector part")
	}
	return p, nil
}

func splitClasses(s string) []string {
	return strings.Split(s, ".")
}

// String returns the source text of the selector.
func (s Selector) String() string { return s.src }

// All returns every node under root matching the selector, in document
// order.
func (s Selector) All(root *html.Node) []*html.Node {
	if len(s.parts) == 0 || root == nil {
		return nil
	}
	matches := collect(root, s.parts[0], true)
	for _, p := range s.parts[1:] {
		var next []*html.Node
		for _, m := range matches {
			next = append(next, collect(m, p, false)...)
		}
		matches = next
	}
	return matches
}

// First returns the first node matching the selector, or nil.
func (s Selector) First(root *html.Node) *html.Node {
	all := s.All(root)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// collect gathers matching nodes in the subtree. includeSelf controls
// whether root itself may match; descendant steps must only look below.
func collect(root *html.Node, p part, includeSelf bool) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node, self bool)
	walk = func(n *html.Node, self bool) {
		if self && matches(n, p) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, true)
		}
	}
	walk(root, includeSelf)
	return out
}

func matches(n *html.Node, p part) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if p.tag != "" && n.Data != p.tag {
		return false
	}
	if p.id != "" && Attr(n, "id") != p.id {
		return false
	}
	if len(p.classes) > 0 {
		have := strings.Fields(Attr(n, "class"))
		for _, want := range p.classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	if p.attrKey != "" {
		val, ok := lookupAttr(n, p.attrKey)
		if !ok {
			return false
		}
		if p.attrVal != "" && val != p.attrVal {
			return false
		}
	}
	return true
}

// Attr returns the value of an attribute, "" when missing.
func Attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
