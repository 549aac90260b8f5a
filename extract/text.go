package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Text returns the node's inner text with whitespace collapsed: runs of
// spaces, tabs and newlines become single spaces, surrounding whitespace
// is trimmed. Script and style content is skipped.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Texts maps Text over nodes, dropping entries that come out empty.
func Texts(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if t := Text(n); t != "" {
			out = append(out, t)
		}
	}
	return out
}
