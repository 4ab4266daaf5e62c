package chunker

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var htmlLayout = layout{unitSep: "\n", classify: classifyHTML}

// HTML chunks an HTML document or fragment. A non-blank <title> in the head
// becomes a leading heading chunk; otherwise only the body is considered.
// Script, style, svg, noscript and template elements are dropped wherever
// they appear. Sections start at h1-h6 elements, block elements become
// units, and runs of inline content between blocks become paragraph units.
func HTML(ctx context.Context, text string, opts Options) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	p := &htmlParser{}
	if err := p.addTitle(doc); err != nil {
		return nil, err
	}
	if body := findElement(doc, atom.Body); body != nil {
		if err := p.walk(body); err != nil {
			return nil, err
		}
	}
	p.flushSection()
	return assemble(ctx, p.sections, htmlLayout, opts)
}

// excluded elements never contribute text to any chunk.
func excluded(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Svg, atom.Noscript, atom.Template:
		return true
	}
	return n.Data == "svg"
}

func isHeading(n *html.Node) bool {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// isContainer reports elements that only group other blocks.
func isContainer(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Div, atom.Section, atom.Article, atom.Main, atom.Header, atom.Footer,
		atom.Aside, atom.Nav, atom.Body, atom.Form, atom.Center:
		return true
	}
	return false
}

func isBlock(n *html.Node) bool {
	if isHeading(n) || isContainer(n) {
		return true
	}
	switch n.DataAtom {
	case atom.P, atom.Ul, atom.Ol, atom.Dl, atom.Menu, atom.Pre, atom.Table,
		atom.Blockquote, atom.Figure, atom.Hr, atom.Address, atom.Details,
		atom.Fieldset, atom.Li, atom.Dt, atom.Dd:
		return true
	}
	return false
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && isBlock(c) && !excluded(c) {
			return true
		}
	}
	return false
}

type htmlParser struct {
	sections []section
	cur      section
	inline   []*html.Node
}

func (p *htmlParser) walk(n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			p.inline = append(p.inline, c)
		case html.ElementNode:
			if excluded(c) {
				continue
			}
			switch {
			case isHeading(c):
				if err := p.flushInline(); err != nil {
					return err
				}
				p.flushSection()
				heading, err := render(c)
				if err != nil {
					return err
				}
				p.cur.heading = heading
			case isContainer(c) && hasBlockChild(c):
				if err := p.flushInline(); err != nil {
					return err
				}
				if err := p.walk(c); err != nil {
					return err
				}
			case isBlock(c):
				if err := p.flushInline(); err != nil {
					return err
				}
				if err := p.addBlock(c); err != nil {
					return err
				}
			default:
				p.inline = append(p.inline, c)
			}
		}
	}
	return p.flushInline()
}

// addTitle emits the document title as a section of its own.
func (p *htmlParser) addTitle(doc *html.Node) error {
	head := findElement(doc, atom.Head)
	if head == nil {
		return nil
	}
	title := findElement(head, atom.Title)
	if title == nil || strings.TrimSpace(textOf(title)) == "" {
		return nil
	}
	heading, err := render(title)
	if err != nil {
		return err
	}
	p.sections = append(p.sections, section{heading: heading})
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func (p *htmlParser) addBlock(n *html.Node) error {
	text, err := render(n)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	p.cur.units = append(p.cur.units, unit{text: text, atomic: n.DataAtom == atom.Pre})
	return nil
}

func (p *htmlParser) flushInline() error {
	if len(p.inline) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, n := range p.inline {
		prune(n)
		if err := html.Render(&buf, n); err != nil {
			return fmt.Errorf("failed to render HTML: %w", err)
		}
	}
	p.inline = nil
	if text := strings.TrimSpace(buf.String()); text != "" {
		p.cur.units = append(p.cur.units, unit{text: text})
	}
	return nil
}

func (p *htmlParser) flushSection() {
	if p.cur.heading != "" || len(p.cur.units) > 0 {
		p.sections = append(p.sections, p.cur)
	}
	p.cur = section{}
}

// render serializes n after removing excluded descendants.
func render(n *html.Node) (string, error) {
	prune(n)
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if excluded(c) || c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

var (
	listOpenTags  = []string{"<ul", "<ol", "<dl", "<menu"}
	listCloseTags = []string{"</ul>", "</ol>", "</dl>", "</menu>"}
)

// classifyHTML applies the majority rule to lines of rendered HTML: lines
// inside list elements count as list content, lines inside <pre> as code.
func classifyHTML(body string) Type {
	var total, list, code int
	depth := 0
	inPre := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if trimmed == "" {
			continue
		}
		total++

		opensPre := strings.Contains(trimmed, "<pre")
		if inPre || opensPre {
			code++
		}
		if opensPre {
			inPre = true
		}
		if strings.Contains(trimmed, "</pre>") {
			inPre = false
		}
		if inPre || opensPre {
			continue
		}

		opened := countAny(trimmed, listOpenTags)
		if depth > 0 || opened > 0 || strings.HasPrefix(trimmed, "<li") {
			list++
		}
		depth += opened - countAny(trimmed, listCloseTags)
		if depth < 0 {
			depth = 0
		}
	}
	switch {
	case total == 0:
		return TypeParagraph
	case list*2 > total:
		return TypeList
	case code*2 > total:
		return TypeCode
	default:
		return TypeParagraph
	}
}

func countAny(s string, subs []string) int {
	n := 0
	for _, sub := range subs {
		n += strings.Count(s, sub)
	}
	return n
}
