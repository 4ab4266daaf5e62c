package chunker

import (
	"context"
	"regexp"
	"strings"
)

var (
	// atxHeading matches "# Title" through "###### Title".
	atxHeading = regexp.MustCompile(`^ {0,3}#{1,6}(?:[ \t]|$)`)
	// fenceOpen matches the opening line of a fenced code block.
	fenceOpen = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")
	// listItem matches bullet and ordered list markers.
	listItem = regexp.MustCompile(`^\s*(?:[-*+]|\d{1,9}[.)])\s+`)
	// setextUnderline matches the line under a setext heading.
	setextUnderline = regexp.MustCompile(`^ {0,3}(?:=+|-+)[ \t]*$`)
)

var markdownLayout = layout{unitSep: "\n\n", classify: classifyMarkdown}

// Markdown chunks a Markdown document. Sections start at ATX or setext
// headings; fenced code blocks are kept whole and headings inside them are
// ignored. YAML front matter is metadata and never appears in a chunk.
func Markdown(ctx context.Context, text string, opts Options) ([]Chunk, error) {
	_, text = SplitFrontMatter(text)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return assemble(ctx, parseMarkdown(text, true), markdownLayout, opts)
}

// SplitFrontMatter separates a leading YAML front matter block, delimiters
// included, from the rest of a Markdown document. front is empty when the
// document has none.
func SplitFrontMatter(text string) (front, body string) {
	normalized := strings.ReplaceAll(strings.TrimPrefix(text, "\ufeff"), "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return "", text
	}
	lines := strings.SplitAfter(normalized, "\n")
	for i := 1; i < len(lines); i++ {
		switch strings.TrimRight(lines[i], " \t\n") {
		case "---", "...":
			return strings.TrimRight(strings.Join(lines[:i+1], ""), "\n"), strings.Join(lines[i+1:], "")
		}
	}
	return "", text
}

// Plain chunks plain text. The whole text is one headless section split on
// blank lines.
func Plain(ctx context.Context, text string, opts Options) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return assemble(ctx, parseMarkdown(text, false), markdownLayout, opts)
}

func parseMarkdown(text string, structured bool) []section {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var sections []section
	cur := section{}
	var block []string
	fence := ""

	flushBlock := func(atomic bool) {
		if len(block) > 0 {
			cur.units = append(cur.units, unit{text: strings.Join(block, "\n"), atomic: atomic})
			block = nil
		}
	}
	flushSection := func() {
		flushBlock(false)
		if cur.heading != "" || len(cur.units) > 0 {
			sections = append(sections, cur)
		}
		cur = section{}
	}

	for _, line := range lines {
		if fence != "" {
			block = append(block, line)
			if closesFence(line, fence) {
				flushBlock(true)
				fence = ""
			}
			continue
		}
		if structured {
			if m := fenceOpen.FindStringSubmatch(line); m != nil {
				flushBlock(false)
				fence = m[1]
				block = []string{line}
				continue
			}
			if atxHeading.MatchString(line) {
				flushSection()
				cur.heading = strings.TrimSpace(line)
				continue
			}
			if len(block) > 0 && setextUnderline.MatchString(line) && !listItem.MatchString(block[0]) {
				heading := strings.Join(append(block, strings.TrimSpace(line)), "\n")
				block = nil
				flushSection()
				cur.heading = heading
				continue
			}
		}
		if strings.TrimSpace(line) == "" {
			flushBlock(false)
			continue
		}
		block = append(block, line)
	}
	// An unterminated fence runs to the end of the document.
	flushBlock(fence != "")
	flushSection()
	return sections
}

// closesFence reports whether line closes a fence opened with marker: same
// character, at least as long, nothing else on the line.
func closesFence(line, marker string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < len(marker) {
		return false
	}
	return strings.Trim(trimmed, marker[:1]) == ""
}

// classifyMarkdown returns list or code when more than half of the non-blank
// lines are list items (or their continuations) or fenced code, and
// paragraph otherwise.
func classifyMarkdown(body string) Type {
	var total, list, code int
	fence := ""
	inList := false
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if fence != "" {
			code++
			if closesFence(line, fence) {
				fence = ""
			}
			continue
		}
		if m := fenceOpen.FindStringSubmatch(line); m != nil {
			fence = m[1]
			code++
			inList = false
			continue
		}
		switch {
		case listItem.MatchString(line):
			inList = true
			list++
		case inList && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")):
			list++
		default:
			inList = false
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
