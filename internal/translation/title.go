package translation

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"gopkg.in/yaml.v3"

	"github.com/GrxyScxr1/vertana-sub000/internal/chunker"
)

var (
	atxTitle     = regexp.MustCompile(`^ {0,3}#{1,6}[ \t]+(.+?)(?:[ \t]+#+)?[ \t]*$`)
	setextLine   = regexp.MustCompile(`^ {0,3}(?:=+|-+)[ \t]*$`)
	fenceLine    = regexp.MustCompile("^ {0,3}(?:`{3,}|~{3,})")
	listItemLine = regexp.MustCompile(`^\s*(?:[-*+]|\d{1,9}[.)])\s+`)
)

// ExtractTitle finds the document title. Markdown yields the front matter
// "title" field or else the first ATX or setext heading; HTML yields the <title>
// element or else the first <h1>. Plain text has no title.
func ExtractTitle(text, mediaType string) string {
	switch chunker.NormalizeMediaType(mediaType) {
	case chunker.MediaTypeHTML:
		return htmlTitle(text)
	case chunker.MediaTypePlain:
		return ""
	default:
		if t := frontMatterTitle(text); t != "" {
			return t
		}
		return headingTitle(text)
	}
}

func frontMatterTitle(text string) string {
	front, _ := chunker.SplitFrontMatter(text)
	if front == "" {
		return ""
	}
	lines := strings.Split(front, "\n")
	var meta struct {
		Title string `yaml:"title"`
	}
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:len(lines)-1], "\n")), &meta); err != nil {
		return ""
	}
	return strings.TrimSpace(meta.Title)
}

func headingTitle(text string) string {
	_, text = chunker.SplitFrontMatter(text)
	inFence := false
	prev := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if fenceLine.MatchString(line) {
			inFence = !inFence
			prev = ""
			continue
		}
		if inFence {
			continue
		}
		if m := atxTitle.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1])
		}
		if prev != "" && setextLine.MatchString(line) && !listItemLine.MatchString(prev) {
			return strings.TrimSpace(prev)
		}
		prev = strings.TrimSpace(line)
	}
	return ""
}

func htmlTitle(text string) string {
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return ""
	}
	if n := find(doc, atom.Title); n != nil {
		if t := textOf(n); t != "" {
			return t
		}
	}
	if n := find(doc, atom.H1); n != nil {
		return textOf(n)
	}
	return ""
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
