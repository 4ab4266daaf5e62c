// Package markdown renders translated Markdown for display.
package markdown

import (
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	nethtml "golang.org/x/net/html"
)

// ToHTML renders Markdown as an HTML fragment.
func ToHTML(md []byte) string {
	opts := html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	}
	renderer := html.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Attributes
	p := parser.NewWithExtensions(ext)
	doc := p.Parse(md)
	return string(markdown.Render(doc, renderer))
}

// Document renders Markdown as a standalone HTML page in language lang.
func Document(md []byte, title, lang string) string {
	return fmt.Sprintf("<!DOCTYPE html>\n<html lang=\"%s\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		stdhtml.EscapeString(lang), stdhtml.EscapeString(title), ToHTML(md))
}

// ToPlainText renders Markdown and keeps only the text, for language
// detection on marked-up documents.
func ToPlainText(md []byte) string {
	return StripHTMLTags(ToHTML(md))
}

// StripHTMLTags returns the text content of an HTML fragment with entities
// decoded. Script and style contents are dropped.
func StripHTMLTags(htmlContent string) string {
	var b strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(htmlContent))
	skip := 0
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return b.String()
		case nethtml.StartTagToken:
			if name, _ := z.TagName(); isRaw(name) {
				skip++
			}
		case nethtml.EndTagToken:
			if name, _ := z.TagName(); isRaw(name) && skip > 0 {
				skip--
			}
		case nethtml.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRaw(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
