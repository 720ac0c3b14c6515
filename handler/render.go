package handler

import (
	"html/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizerStrict = bluemonday.StrictPolicy()
	sanitizerUGC    = bluemonday.UGCPolicy()
)

func mdToHTML(md string) []byte {
	// create markdown parser with extensions
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	// create HTML renderer with extensions
	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	opts := html.RendererOptions{Flags: htmlFlags}
	renderer := html.NewRenderer(opts)

	return markdown.Render(doc, renderer)
}

func safeMd(content string) template.HTML {
	if content == "" {
		return ""
	}
	return template.HTML(sanitizerUGC.SanitizeBytes(mdToHTML(content)))
}

// plainText strips any markup; the result is already HTML-escaped.
func plainText(s string) template.HTML {
	return template.HTML(sanitizerStrict.Sanitize(s))
}
