package docload

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// loadHTML sanitizes an HTML wordbook and converts it to Markdown text.
// Script, style and event-handler content is dropped before conversion;
// block elements become Markdown paragraphs, so entry boundaries survive
// as blank lines.
func (l *Loader) loadHTML(path string) (string, error) {
	data, err := l.readAll(path)
	if err != nil {
		return "", err
	}

	clean := bluemonday.UGCPolicy().SanitizeBytes(data)

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	md, err := conv.ConvertString(string(clean))
	if err != nil {
		return "", err
	}
	return normalizeText(md), nil
}
