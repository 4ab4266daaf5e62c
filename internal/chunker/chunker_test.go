package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
)

// words counts whitespace-separated fields so budgets are easy to reason about.
func words(text string) int {
	return len(strings.Fields(text))
}

func contents(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

func assertContiguous(t *testing.T, chunks []Chunk) {
	t.Helper()
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "chunk %d has index %d", i, c.Index)
	}
}

func TestMarkdownEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\t\n"} {
		chunks, err := Markdown(context.Background(), in, Options{})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestMarkdownSections(t *testing.T) {
	text := "# Intro\n\nFirst paragraph.\n\n## Details\n\nSecond paragraph."

	chunks, err := Markdown(context.Background(), text, Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "# Intro\n\nFirst paragraph.", chunks[0].Content)
	assert.Equal(t, TypeSection, chunks[0].Type)
	assert.Equal(t, "## Details\n\nSecond paragraph.", chunks[1].Content)
	assert.Equal(t, TypeSection, chunks[1].Type)
	assertContiguous(t, chunks)
}

func TestMarkdownSetextSections(t *testing.T) {
	text := "Title\n=====\n\nBody one.\n\nSub\n---\n\nBody two.\n"

	chunks, err := Markdown(context.Background(), text, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Title\n=====\n\nBody one.", "Sub\n---\n\nBody two."}, contents(chunks))
	assert.Equal(t, TypeSection, chunks[0].Type)
	assert.Equal(t, TypeSection, chunks[1].Type)
	assertContiguous(t, chunks)
}

func TestMarkdownThematicBreakIsNotHeading(t *testing.T) {
	chunks, err := Markdown(context.Background(), "One.\n\n---\n\nTwo.", Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, TypeParagraph, chunks[0].Type)
}

func TestMarkdownSkipsFrontMatter(t *testing.T) {
	text := "---\ntitle: Hello\ntags: [a, b]\n---\n\nBody text.\n"

	chunks, err := Markdown(context.Background(), text, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Body text."}, contents(chunks))

	chunks, err = Markdown(context.Background(), "---\ntitle: Only\n---\n", Options{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitFrontMatter(t *testing.T) {
	front, body := SplitFrontMatter("---\ntitle: x\n...\nrest")
	assert.Equal(t, "---\ntitle: x\n...", front)
	assert.Equal(t, "rest", body)

	front, body = SplitFrontMatter("---\nnever closed")
	assert.Empty(t, front)
	assert.Equal(t, "---\nnever closed", body)

	front, body = SplitFrontMatter("# Doc")
	assert.Empty(t, front)
	assert.Equal(t, "# Doc", body)
}

func TestMarkdownLeadingTextAndHeadingOnly(t *testing.T) {
	text := "Preamble text.\n\n# Lonely"

	chunks, err := Markdown(context.Background(), text, Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, TypeParagraph, chunks[0].Type)
	assert.Equal(t, "# Lonely", chunks[1].Content)
	assert.Equal(t, TypeHeading, chunks[1].Type)
}

func TestMarkdownClassification(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Type
	}{
		{"paragraph", "Just some prose.\nAnother line.", TypeParagraph},
		{"bullets", "- one\n- two\n- three", TypeList},
		{"ordered with continuation", "1. first\n   continued\n2. second", TypeList},
		{"fenced code", "```go\nfmt.Println(1)\n```", TypeCode},
		{"mostly prose", "Intro line.\nMore prose.\n- lone item", TypeParagraph},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Markdown(context.Background(), tt.text, Options{})
			require.NoError(t, err)
			require.Len(t, chunks, 1)
			assert.Equal(t, tt.want, chunks[0].Type)
		})
	}
}

func TestMarkdownFenceIsNeverSplit(t *testing.T) {
	fence := "```\n# not a heading\nline one two\nline three four\n```"

	chunks, err := Markdown(context.Background(), fence, Options{MaxTokens: 3, Counter: words})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, fence, chunks[0].Content)
	assert.Equal(t, TypeCode, chunks[0].Type)
}

func TestMarkdownUnterminatedFence(t *testing.T) {
	text := "Before.\n\n~~~\ncode\n\n# still code"

	chunks, err := Markdown(context.Background(), text, Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "# still code")
}

func TestMarkdownHeadingStaysWithFirstSubChunk(t *testing.T) {
	text := "# T\n\none two\n\nthree four\n\nfive six"

	chunks, err := Markdown(context.Background(), text, Options{MaxTokens: 5, Counter: words})
	require.NoError(t, err)
	assert.Equal(t, []string{"# T\n\none two", "three four\n\nfive six"}, contents(chunks))
	assert.Equal(t, TypeSection, chunks[0].Type)
	assert.Equal(t, TypeParagraph, chunks[1].Type)
	assertContiguous(t, chunks)
}

func TestMarkdownHeadingStaysWithOversizedParagraph(t *testing.T) {
	text := "## Intro\n\n" + strings.Repeat("The quick brown fox jumps. ", 20)

	chunks, err := Markdown(context.Background(), text, Options{MaxTokens: 12, Counter: words})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, "## Intro\n\nThe quick brown fox jumps. The quick brown fox jumps.", chunks[0].Content)
	assert.Equal(t, TypeSection, chunks[0].Type)
	for _, c := range chunks {
		assert.LessOrEqual(t, words(c.Content), 12)
	}
	assertContiguous(t, chunks)
}

func TestMarkdownHeadingAloneWhenNothingFits(t *testing.T) {
	text := "## Intro\n\nOne two three four five. Six seven eight nine ten."

	chunks, err := Markdown(context.Background(), text, Options{MaxTokens: 5, Counter: words})
	require.NoError(t, err)
	assert.Equal(t, []string{"## Intro", "One two three four five.", "Six seven eight nine ten."}, contents(chunks))
	assert.Equal(t, TypeHeading, chunks[0].Type)
}

func TestMarkdownDegradesToLines(t *testing.T) {
	text := "a b\nc d\ne f"

	chunks, err := Markdown(context.Background(), text, Options{MaxTokens: 2, Counter: words})
	require.NoError(t, err)
	assert.Equal(t, []string{"a b", "c d", "e f"}, contents(chunks))
}

func TestMarkdownDegradesToSentences(t *testing.T) {
	text := "One two three. Four five six. Seven."

	chunks, err := Markdown(context.Background(), text, Options{MaxTokens: 3, Counter: words})
	require.NoError(t, err)
	assert.Equal(t, []string{"One two three.", "Four five six.", "Seven."}, contents(chunks))
	assertContiguous(t, chunks)
}

func TestMarkdownIndivisibleSentence(t *testing.T) {
	text := "this sentence is far too long for the budget"

	chunks, err := Markdown(context.Background(), text, Options{MaxTokens: 2, Counter: words})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)
}

func TestMarkdownTokenBound(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. It runs away.\n\n")
		if i%10 == 0 {
			b.WriteString("## Part\n\n")
		}
	}

	opts := Options{MaxTokens: 30}
	chunks, err := Markdown(context.Background(), b.String(), opts)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assertContiguous(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, opts.withDefaults().Counter(c.Content), opts.MaxTokens)
	}
}

func TestMarkdownCoverage(t *testing.T) {
	text := "# A\n\nalpha beta\n\ngamma delta\n\n# B\n\n- x\n- y\n\n```\nz\n```"

	chunks, err := Markdown(context.Background(), text, Options{MaxTokens: 3, Counter: words})
	require.NoError(t, err)
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(contents(chunks), " ")))
}

func TestMarkdownCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Markdown(ctx, "# A\n\ntext", Options{})
	assert.ErrorIs(t, err, errs.ErrAborted)
}

func TestPlainIgnoresMarkup(t *testing.T) {
	text := "# not a heading\n\n```\nnot a fence\n\nstill text"

	chunks, err := Plain(context.Background(), text, Options{MaxTokens: 4, Counter: words})
	require.NoError(t, err)
	assert.Equal(t, []string{"# not a heading", "```\nnot a fence", "still text"}, contents(chunks))
}

func TestHTMLParagraph(t *testing.T) {
	chunks, err := HTML(context.Background(), "<p>Hello, world!</p>", Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, TypeParagraph, chunks[0].Type)
	assert.Contains(t, chunks[0].Content, "Hello, world!")
}

func TestHTMLExcludesNonTranslatable(t *testing.T) {
	doc := `<html><head><title>Doc</title><style>body { color: red }</style></head>
<body>
<h1>Title</h1>
<script>alert("boom")</script>
<p>Visible <b>text</b><noscript>enable js</noscript></p>
<svg><text>vector label</text></svg>
<!-- hidden comment -->
</body></html>`

	chunks, err := HTML(context.Background(), doc, Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "<title>Doc</title>", chunks[0].Content)
	assert.Equal(t, TypeHeading, chunks[0].Type)

	got := chunks[1].Content
	assert.Equal(t, TypeSection, chunks[1].Type)
	assert.Contains(t, got, "<h1>Title</h1>")
	assert.Contains(t, got, "Visible <b>text</b>")
	for _, hidden := range []string{"boom", "color: red", "vector label", "enable js", "hidden comment"} {
		assert.NotContains(t, got, hidden)
	}
}

func TestHTMLDocumentTitleIsChunked(t *testing.T) {
	doc := "<html><head><title>My Page Title</title></head><body><p>Hi there.</p></body></html>"

	chunks, err := HTML(context.Background(), doc, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"<title>My Page Title</title>", "<p>Hi there.</p>"}, contents(chunks))
	assert.Equal(t, TypeHeading, chunks[0].Type)
	assertContiguous(t, chunks)
}

func TestHTMLBlankTitleIsSkipped(t *testing.T) {
	chunks, err := HTML(context.Background(), "<html><head><title> </title></head><body><p>Hi.</p></body></html>", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"<p>Hi.</p>"}, contents(chunks))
}

func TestHTMLHeadingStaysWithOversizedParagraph(t *testing.T) {
	doc := "<h2>Intro</h2><p>" + strings.TrimSpace(strings.Repeat("The quick brown fox jumps. ", 20)) + "</p>"

	chunks, err := HTML(context.Background(), doc, Options{MaxTokens: 12, Counter: words})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "<h2>Intro</h2>\n<p>The quick"), chunks[0].Content)
	assert.Equal(t, TypeSection, chunks[0].Type)
	for _, c := range chunks {
		assert.LessOrEqual(t, words(c.Content), 12)
	}
}

func TestHTMLSectionsAndTypes(t *testing.T) {
	doc := `<div><h2>One</h2><ul><li>a</li><li>b</li></ul></div>
<h2>Two</h2><pre>x := 1
y := 2</pre>
<ol><li>c</li></ol>`

	chunks, err := HTML(context.Background(), doc, Options{MaxTokens: 6, Counter: words})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assertContiguous(t, chunks)

	assert.True(t, strings.HasPrefix(chunks[0].Content, "<h2>One</h2>"))
	assert.Equal(t, TypeSection, chunks[0].Type)

	var types []Type
	for _, c := range chunks[1:] {
		types = append(types, c.Type)
	}
	assert.Contains(t, types, TypeList)
}

func TestHTMLInlineRun(t *testing.T) {
	chunks, err := HTML(context.Background(), "Hello <em>there</em><p>Next</p>", Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello <em>there</em>\n<p>Next</p>", chunks[0].Content)
}

func TestHTMLPreformattedIsCode(t *testing.T) {
	chunks, err := HTML(context.Background(), "<pre>line one\nline two</pre>", Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, TypeCode, chunks[0].Type)
}

func TestForMediaType(t *testing.T) {
	doc := "<p>kept</p><script>dropped()</script>"

	chunks, err := ForMediaType("text/html; charset=utf-8")(context.Background(), doc, Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0].Content, "dropped")

	chunks, err = ForMediaType("text/markdown")(context.Background(), doc, Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "dropped")
}

func TestWhole(t *testing.T) {
	chunks, err := Whole(context.Background(), "  # A\n\nbody  ", Options{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "# A\n\nbody", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
}
