// Package terms proposes glossary entries from a translated passage.
package terms

import (
	"context"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/prompt"
)

// DefaultMaxTerms caps the number of entries returned by Extract.
const DefaultMaxTerms = 10

type Options struct {
	MaxTerms       int
	SourceLanguage string
	TargetLanguage string
}

type extraction struct {
	Terms []glossary.Entry `json:"terms" jsonschema:"key terms with their translations as used in the translation"`
}

// Extract asks model for the terminology pairs used in the translation of
// source. Entries come back in the model's order, minus blanks, cut to
// MaxTerms. It also returns the tokens spent.
func Extract(ctx context.Context, model llm.Model, source, translated string, opts Options) (glossary.Glossary, int, error) {
	if err := errs.CheckContext(ctx); err != nil {
		return nil, 0, err
	}
	limit := opts.MaxTerms
	if limit <= 0 {
		limit = DefaultMaxTerms
	}

	out, used, err := llm.Structured[extraction](ctx, model, systemPrompt(limit, opts), userPrompt(source, translated), "glossary_terms")
	if err != nil {
		return nil, used, fmt.Errorf("failed to extract terms: %w", err)
	}

	g := make(glossary.Glossary, 0, min(len(out.Terms), limit))
	for _, e := range out.Terms {
		e.Original = strings.TrimSpace(e.Original)
		e.Translated = strings.TrimSpace(e.Translated)
		if e.Original == "" || e.Translated == "" {
			continue
		}
		if len(g) == limit {
			break
		}
		g = append(g, e)
	}
	return g, used, nil
}

func systemPrompt(limit int, opts Options) string {
	var b strings.Builder
	b.WriteString(heredoc.Docf(`
		You are a terminology specialist. Extract up to %d key terms from the
		original text together with the exact translation used for each in the
		translated text. Prefer proper nouns, technical vocabulary and recurring
		domain phrases; skip common words. Add a short context only when a term is
		ambiguous.
	`, limit))
	if opts.SourceLanguage != "" {
		fmt.Fprintf(&b, "The original text is in %s.\n", prompt.LanguageName(opts.SourceLanguage))
	}
	if opts.TargetLanguage != "" {
		fmt.Fprintf(&b, "The translated text is in %s.\n", prompt.LanguageName(opts.TargetLanguage))
	}
	return b.String()
}

func userPrompt(source, translated string) string {
	return heredoc.Docf(`
		Original:
		%s

		Translation:
		%s
	`, source, translated)
}
