package translation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrxyScxr1/vertana-sub000/internal/chunker"
	"github.com/GrxyScxr1/vertana-sub000/internal/contextsource"
	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm/llmtest"
	"github.com/GrxyScxr1/vertana-sub000/internal/orchestrator"
	"github.com/GrxyScxr1/vertana-sub000/internal/refiner"
)

func TestTranslateMarkdown(t *testing.T) {
	model := &llmtest.Fake{TextFunc: llmtest.Reply("# Begrüßung\n\nHallo, Welt!", 5)}

	var kinds []string
	got, err := Translate(context.Background(), "# Greeting\n\nHello, world!", Options{
		TargetLanguage: "de",
		Models:         []llm.Model{model},
		OnEvent:        func(ev orchestrator.Event) { kinds = append(kinds, ev.Kind()) },
	})
	require.NoError(t, err)

	assert.Equal(t, "# Begrüßung\n\nHallo, Welt!", got.Text)
	assert.Equal(t, "Begrüßung", got.Title)
	assert.Equal(t, 5, got.TokensUsed)
	assert.Nil(t, got.QualityScore)
	assert.Empty(t, got.SelectedModel)
	assert.Len(t, got.Chunks, 1)
	assert.Equal(t, []string{"chunk", "complete"}, kinds)

	reqs := model.TextRequests()
	require.Len(t, reqs, 1)
	assert.True(t, strings.HasPrefix(reqs[0].User, "Title: Greeting\n\n"))
	assert.Contains(t, reqs[0].System, "Markdown")
}

func TestTranslateKeepsFrontMatter(t *testing.T) {
	model := &llmtest.Fake{TextFunc: llmtest.Reply("# Begrüßung\n\nHallo!", 3)}

	got, err := Translate(context.Background(), "---\ntitle: Greeting\nslug: greeting\n---\n\n# Greeting\n\nHello!", Options{
		TargetLanguage: "de",
		Models:         []llm.Model{model},
	})
	require.NoError(t, err)

	assert.Equal(t, "---\ntitle: Greeting\nslug: greeting\n---\n\n# Begrüßung\n\nHallo!", got.Text)
	reqs := model.TextRequests()
	require.Len(t, reqs, 1)
	assert.NotContains(t, reqs[0].User, "slug")
	assert.True(t, strings.HasPrefix(reqs[0].User, "Title: Greeting\n\n"))
}

func TestTranslateRequiresTarget(t *testing.T) {
	model := &llmtest.Fake{}
	_, err := Translate(context.Background(), "Hello", Options{Models: []llm.Model{model}})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.Zero(t, model.Calls())
}

func TestTranslateRejectsBadGlossary(t *testing.T) {
	model := &llmtest.Fake{}
	_, err := Translate(context.Background(), "Hello", Options{
		TargetLanguage: "de",
		Models:         []llm.Model{model},
		Glossary:       glossary.Glossary{{Original: "", Translated: "x"}},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.Zero(t, model.Calls())
}

func TestTranslateNoModels(t *testing.T) {
	_, err := Translate(context.Background(), "Hello", Options{TargetLanguage: "de"})
	assert.ErrorIs(t, err, errs.ErrPrecondition)
}

func TestTranslateHTML(t *testing.T) {
	model := &llmtest.Fake{TextFunc: llmtest.Replies(1, "<h1>Hallo</h1>\n<p>Eins</p>", "<h2>Unter</h2>\n<p>Zwei</p>")}

	got, err := Translate(context.Background(), "<h1>Hi</h1><p>One</p><h2>Sub</h2><p>Two</p>", Options{
		TargetLanguage: "de",
		MediaType:      "text/html",
		Models:         []llm.Model{model},
	})
	require.NoError(t, err)

	assert.Equal(t, "<h1>Hallo</h1>\n<p>Eins</p>\n<h2>Unter</h2>\n<p>Zwei</p>", got.Text)
	assert.Equal(t, "Hallo", got.Title)
	reqs := model.TextRequests()
	require.Len(t, reqs, 2)
	assert.True(t, strings.HasPrefix(reqs[0].User, "Title: Hi\n\n"))
	assert.Contains(t, reqs[0].System, "HTML")
}

func TestTranslateSelectsModel(t *testing.T) {
	a := &llmtest.Fake{ModelName: "a", TextFunc: llmtest.Reply("alpha", 1)}
	b := &llmtest.Fake{ModelName: "b", TextFunc: llmtest.Reply("beta", 1)}
	judge := &llmtest.Fake{StructuredFunc: func(ctx context.Context, req llm.StructuredRequest) (llm.StructuredResponse, error) {
		if strings.HasSuffix(strings.TrimSpace(req.User), "alpha") {
			return llmtest.JSON(`{"score": 0.9, "issues": []}`)(ctx, req)
		}
		return llmtest.JSON(`{"score": 0.5, "issues": []}`)(ctx, req)
	}}

	got, err := Translate(context.Background(), "# One\n\nFirst.\n\n# Two\n\nSecond.", Options{
		TargetLanguage: "de",
		Models:         []llm.Model{a, b},
		EvaluatorModel: judge,
	})
	require.NoError(t, err)

	assert.Equal(t, "a", got.SelectedModel)
	require.NotNil(t, got.QualityScore)
	assert.InDelta(t, 0.9, *got.QualityScore, 1e-9)
	assert.Equal(t, "alpha\n\nalpha", got.Text)
	assert.Len(t, got.Chunks, 2)
}

func TestTranslateSelectedModelTieGoesToFirstModel(t *testing.T) {
	a := &llmtest.Fake{ModelName: "a", TextFunc: llmtest.Reply("alpha", 1)}
	b := &llmtest.Fake{ModelName: "b", TextFunc: llmtest.Reply("beta", 1)}
	judge := &llmtest.Fake{StructuredFunc: func(ctx context.Context, req llm.StructuredRequest) (llm.StructuredResponse, error) {
		user := strings.TrimSpace(req.User)
		first := strings.Contains(user, "First.")
		if (first && strings.HasSuffix(user, "beta")) || (!first && strings.HasSuffix(user, "alpha")) {
			return llmtest.JSON(`{"score": 0.9, "issues": []}`)(ctx, req)
		}
		return llmtest.JSON(`{"score": 0.5, "issues": []}`)(ctx, req)
	}}

	got, err := Translate(context.Background(), "# One\n\nFirst.\n\n# Two\n\nSecond.", Options{
		TargetLanguage: "de",
		Models:         []llm.Model{a, b},
		EvaluatorModel: judge,
	})
	require.NoError(t, err)

	require.Len(t, got.Chunks, 2)
	assert.Equal(t, "b", got.Chunks[0].SelectedModel)
	assert.Equal(t, "a", got.Chunks[1].SelectedModel)
	assert.Equal(t, "a", got.SelectedModel)
}

func TestTranslateRefinementScore(t *testing.T) {
	model := &llmtest.Fake{
		TextFunc:       llmtest.Reply("Hallo", 1),
		StructuredFunc: llmtest.JSON(`{"score": 0.95, "issues": []}`),
	}

	got, err := Translate(context.Background(), "Hello", Options{
		TargetLanguage: "de",
		Models:         []llm.Model{model},
		Refinement:     &refiner.Options{EvaluateBoundaries: true},
	})
	require.NoError(t, err)
	require.NotNil(t, got.RefinementIterations)
	assert.Zero(t, *got.RefinementIterations)
	require.NotNil(t, got.QualityScore)
	assert.InDelta(t, 0.95, *got.QualityScore, 1e-9)
}

func TestTranslateContextSources(t *testing.T) {
	model := &llmtest.Fake{TextFunc: llmtest.Reply("Hallo", 1)}
	lookup := contextsource.Func[struct {
		Term string `json:"term"`
	}]{
		ToolName:        "lookup",
		ToolDescription: "look up",
		Gather: func(context.Context, struct {
			Term string `json:"term"`
		}) (contextsource.Result, error) {
			return contextsource.Result{Content: "none"}, nil
		},
	}

	_, err := Translate(context.Background(), "Hello", Options{
		TargetLanguage: "de",
		Context:        "A greeting.",
		ContextSources: []contextsource.Required{contextsource.Static{Content: "Spoken by a robot."}},
		PassiveSources: []contextsource.Passive{lookup},
		Models:         []llm.Model{model},
	})
	require.NoError(t, err)

	reqs := model.TextRequests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].System, "Additional context:\nA greeting.\n\nSpoken by a robot.")
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "lookup", reqs[0].Tools[0].Name)
}

func TestTranslateTitleOverride(t *testing.T) {
	model := &llmtest.Fake{TextFunc: llmtest.Reply("Hallo", 1)}

	_, err := Translate(context.Background(), "# Doc\n\nHello", Options{
		TargetLanguage: "de",
		Title:          "Custom",
		Models:         []llm.Model{model},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(model.TextRequests()[0].User, "Title: Custom\n\n"))
}

func TestStreamStopsOnError(t *testing.T) {
	var events int
	var errors []error
	for ev, err := range Stream(context.Background(), "Hello", Options{TargetLanguage: "de"}) {
		if err != nil {
			errors = append(errors, err)
			continue
		}
		_ = ev
		events++
	}
	assert.Zero(t, events)
	require.Len(t, errors, 1)
	assert.ErrorIs(t, errors[0], errs.ErrPrecondition)
}

func TestChunk(t *testing.T) {
	text := "# A\n\none\n\n# B\n\ntwo"

	chunks, err := Chunk(context.Background(), text, Options{})
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	chunks, err = Chunk(context.Background(), text, Options{DisableChunking: true})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)

	custom := func(_ context.Context, text string, _ chunker.Options) ([]chunker.Chunk, error) {
		return []chunker.Chunk{{Content: strings.ToUpper(text), Type: chunker.TypeParagraph}}, nil
	}
	chunks, err = Chunk(context.Background(), "abc", Options{Chunker: custom})
	require.NoError(t, err)
	assert.Equal(t, "ABC", chunks[0].Content)
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		mediaType string
		want      string
	}{
		{"front matter", "---\ntitle: From Meta\nauthor: x\n---\n# Heading\n", "", "From Meta"},
		{"front matter without title", "---\nauthor: x\n---\n\n## Second Level ##\n", "text/markdown", "Second Level"},
		{"heading", "Intro\n\n# Main Title\n", "text/markdown", "Main Title"},
		{"heading in fence ignored", "```\n# not a title\n```\n# Real\n", "text/markdown", "Real"},
		{"setext heading", "Main Title\n==========\n\nBody.\n", "text/markdown", "Main Title"},
		{"setext under front matter", "---\nauthor: x\n---\nSub Title\n---\n", "text/markdown", "Sub Title"},
		{"list is not a setext heading", "- item\n---\n", "text/markdown", ""},
		{"no heading", "just text", "text/markdown", ""},
		{"html title", "<html><head><title> Page  Title </title></head><body><h1>H</h1></body></html>", "text/html", "Page Title"},
		{"html h1", "<p>x</p><h1>The <em>Big</em> One</h1>", "text/html", "The Big One"},
		{"html none", "<p>x</p>", "text/html", ""},
		{"plain", "# Looks like a heading", "text/plain", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTitle(tt.text, tt.mediaType))
		})
	}
}
