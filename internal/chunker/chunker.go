// Package chunker splits documents into ordered, typed chunks that each fit a
// model's token budget while keeping structural units (sections, lists, code
// blocks) together.
//
// Every variant parses the document into sections (an optional heading plus
// body units), emits a section whole when it fits, and otherwise degrades
// the split granularity in order of preference:
//  1. Paragraph (block) boundaries
//  2. Line boundaries
//  3. Sentence boundaries (after . ! ? followed by whitespace)
//
// Fenced or preformatted regions are never split. A single unit that cannot
// be divided further is emitted as is, even when it exceeds the budget.
package chunker

import (
	"context"
	"strings"
	"unicode"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/tokens"
)

// DefaultMaxTokens is the chunk budget used when Options.MaxTokens is unset.
const DefaultMaxTokens = 512

// Media types understood by ForMediaType.
const (
	MediaTypePlain    = "text/plain"
	MediaTypeMarkdown = "text/markdown"
	MediaTypeHTML     = "text/html"
)

// Type classifies the dominant content of a chunk.
type Type string

const (
	TypeParagraph Type = "paragraph"
	TypeSection   Type = "section"
	TypeHeading   Type = "heading"
	TypeList      Type = "list"
	TypeCode      Type = "code"
)

// Chunk is a bounded slice of a document. Index is the 0-based position in
// document order.
type Chunk struct {
	Content string `json:"content"`
	Type    Type   `json:"type"`
	Index   int    `json:"index"`
}

// Options controls chunk sizing.
type Options struct {
	// MaxTokens is the per-chunk budget. Zero means DefaultMaxTokens.
	MaxTokens int
	// Counter measures text. Nil means tokens.Count.
	Counter tokens.Counter
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	o.Counter = tokens.OrDefault(o.Counter)
	return o
}

// Func is the chunking contract. Callers may substitute their own.
type Func func(ctx context.Context, text string, opts Options) ([]Chunk, error)

// ForMediaType returns the built-in chunker for a media type. Unknown types
// are treated as Markdown.
func ForMediaType(mediaType string) Func {
	switch NormalizeMediaType(mediaType) {
	case MediaTypeHTML:
		return HTML
	case MediaTypePlain:
		return Plain
	default:
		return Markdown
	}
}

// NormalizeMediaType maps a media type or a short alias to one of the
// MediaType constants.
func NormalizeMediaType(mediaType string) string {
	mt, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mediaType)), ";")
	switch strings.TrimSpace(mt) {
	case MediaTypeHTML, "application/xhtml+xml", "html":
		return MediaTypeHTML
	case MediaTypePlain, "plain", "text":
		return MediaTypePlain
	default:
		return MediaTypeMarkdown
	}
}

// Whole wraps text as a single chunk, for callers that disable chunking.
func Whole(_ context.Context, text string, _ Options) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []Chunk{{Content: strings.TrimSpace(text), Type: TypeSection, Index: 0}}, nil
}

// section is one structural region of a document.
type section struct {
	heading string
	units   []unit
}

// unit is a paragraph-level block. Atomic units are never split.
type unit struct {
	text   string
	atomic bool
}

// layout describes how a document format joins and classifies its pieces.
type layout struct {
	// unitSep joins the heading and units of one section.
	unitSep string
	// classify detects the dominant content type of a body.
	classify func(body string) Type
}

// assemble turns parsed sections into indexed chunks.
func assemble(ctx context.Context, sections []section, lay layout, opts Options) ([]Chunk, error) {
	opts = opts.withDefaults()
	s := &splitter{opts: opts}

	var chunks []Chunk
	emit := func(content string, t Type) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		chunks = append(chunks, Chunk{Content: content, Type: t, Index: len(chunks)})
	}

	for _, sec := range sections {
		if err := errs.CheckContext(ctx); err != nil {
			return nil, err
		}

		parts := make([]string, 0, len(sec.units)+1)
		if sec.heading != "" {
			parts = append(parts, sec.heading)
		}
		body := make([]string, 0, len(sec.units))
		for _, u := range sec.units {
			body = append(body, u.text)
		}
		parts = append(parts, body...)
		whole := strings.Join(parts, lay.unitSep)

		if s.fits(whole) {
			emit(whole, sectionType(sec.heading, strings.Join(body, lay.unitSep), lay))
			continue
		}

		for i, piece := range s.pack(sec.heading, sec.units, lay.unitSep, s.splitUnit) {
			if i == 0 && sec.heading != "" && strings.HasPrefix(piece, sec.heading) {
				emit(piece, sectionType(sec.heading, strings.TrimPrefix(piece, sec.heading), lay))
				continue
			}
			emit(piece, lay.classify(piece))
		}
	}
	return chunks, nil
}

func sectionType(heading, body string, lay layout) Type {
	body = strings.TrimSpace(body)
	switch {
	case heading != "" && body == "":
		return TypeHeading
	case heading != "":
		return TypeSection
	default:
		return lay.classify(body)
	}
}

type splitter struct {
	opts Options
}

func (s *splitter) fits(text string) bool {
	return s.opts.Counter(text) <= s.opts.MaxTokens
}

// pack accumulates units greedily, starting from prefix, and flushes before
// the next unit would exceed the budget. Units that exceed the budget on
// their own are handed to degrade. A prefix that has nothing after it yet is
// joined to the first degraded piece when both fit.
func (s *splitter) pack(prefix string, units []unit, sep string, degrade func(unit) []string) []string {
	var out []string
	cur := prefix
	for _, u := range units {
		if !s.fits(u.text) {
			pieces := degrade(u)
			switch {
			case cur == "":
			case cur == prefix && len(pieces) > 0 && s.fits(prefix+sep+pieces[0]):
				pieces[0] = prefix + sep + pieces[0]
			default:
				out = append(out, cur)
			}
			cur = ""
			out = append(out, pieces...)
			continue
		}
		if cur == "" {
			cur = u.text
			continue
		}
		next := cur + sep + u.text
		if !s.fits(next) {
			out = append(out, cur)
			cur = u.text
			continue
		}
		cur = next
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// splitUnit breaks an oversized paragraph into lines.
func (s *splitter) splitUnit(u unit) []string {
	if u.atomic {
		return []string{u.text}
	}
	lines := nonBlankLines(u.text)
	if len(lines) <= 1 {
		return s.splitLine(unit{text: u.text})
	}
	return s.pack("", lines, "\n", s.splitLine)
}

// splitLine breaks an oversized line into sentences.
func (s *splitter) splitLine(u unit) []string {
	sentences := splitSentences(u.text)
	if len(sentences) <= 1 {
		return []string{u.text}
	}
	units := make([]unit, len(sentences))
	for i, sentence := range sentences {
		units[i] = unit{text: sentence}
	}
	return s.pack("", units, " ", func(u unit) []string { return []string{u.text} })
}

func nonBlankLines(text string) []unit {
	var lines []unit
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, unit{text: line})
		}
	}
	return lines
}

// splitSentences splits after sentence-ending punctuation that is followed by
// whitespace, dropping the whitespace.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && isSpace(runes[j]) {
			j++
		}
		if j == i+1 || j == len(runes) {
			continue
		}
		sentences = append(sentences, string(runes[start:i+1]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}
