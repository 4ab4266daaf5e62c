// Package placeholder swaps code and markup in a chunk for numbered markers
// ([PH0], [PH1], ...) before the chunk is sent to a model, and puts the
// originals back into the model's translation.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/GrxyScxr1/vertana-sub000/internal/chunker"
)

// Hint is appended to the system prompt when a chunk carries markers.
const Hint = "The text contains markers such as [PH0] and [PH1] that stand for code or markup. Copy every marker unchanged into the translation at the matching position."

var (
	reBacktickFence = regexp.MustCompile("(?ms)^ {0,3}```.*?^ {0,3}```[^\\n]*$")
	reTildeFence    = regexp.MustCompile("(?ms)^ {0,3}~~~.*?^ {0,3}~~~[^\\n]*$")
	reInlineCode    = regexp.MustCompile("`[^`\\n]+`")
	reTag           = regexp.MustCompile(`</?[A-Za-z][^<>]*>`)
	reComment       = regexp.MustCompile(`(?s)<!--.*?-->`)

	// Elements whose whole content is kept verbatim in HTML.
	reVerbatim = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<pre\b[^>]*>.*?</pre\s*>`),
		regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`),
		regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`),
		regexp.MustCompile(`(?is)<code\b[^>]*>.*?</code\s*>`),
	}

	reMarker = regexp.MustCompile(`\[\s*PH\s*(\d+)\s*\]`)
)

// Protected is a chunk with its code and markup replaced by markers.
type Protected struct {
	Text      string
	originals []string
}

// Protect masks fenced code, inline code and raw tags in Markdown, and
// comments, verbatim elements and tags in HTML. Plain text is returned
// unchanged. Markers are numbered in the order they are created, longest
// constructs first.
func Protect(text, mediaType string) Protected {
	p := Protected{Text: text}
	var patterns []*regexp.Regexp
	switch chunker.NormalizeMediaType(mediaType) {
	case chunker.MediaTypeHTML:
		patterns = append([]*regexp.Regexp{reComment}, reVerbatim...)
		patterns = append(patterns, reTag)
	case chunker.MediaTypePlain:
		return p
	default:
		patterns = []*regexp.Regexp{reBacktickFence, reTildeFence, reInlineCode, reTag}
	}
	for _, re := range patterns {
		p.Text = re.ReplaceAllStringFunc(p.Text, p.mask)
	}
	return p
}

func (p *Protected) mask(match string) string {
	marker := fmt.Sprintf("[PH%d]", len(p.originals))
	p.originals = append(p.originals, match)
	return marker
}

// Len is the number of markers.
func (p Protected) Len() int {
	return len(p.originals)
}

// Restore puts the originals back into translated. Markers with unknown
// indices are left as they are. The indices of markers the model dropped
// are returned.
func (p Protected) Restore(translated string) (string, []int) {
	if len(p.originals) == 0 {
		return translated, nil
	}
	seen := make([]bool, len(p.originals))
	restored := reMarker.ReplaceAllStringFunc(translated, func(m string) string {
		idx, err := strconv.Atoi(reMarker.FindStringSubmatch(m)[1])
		if err != nil || idx >= len(p.originals) {
			return m
		}
		seen[idx] = true
		return p.originals[idx]
	})

	var missing []int
	for i, ok := range seen {
		if !ok {
			missing = append(missing, i)
		}
	}
	return restored, missing
}

// Missing formats dropped marker indices for logs.
func Missing(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = "[PH" + strconv.Itoa(idx) + "]"
	}
	return strings.Join(parts, ", ")
}
