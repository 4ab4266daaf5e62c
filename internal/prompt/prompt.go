// Package prompt renders the system and user prompts sent to translation
// models. Rendering is deterministic: identical options yield identical text.
package prompt

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/GrxyScxr1/vertana-sub000/internal/chunker"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
)

// Markers delimiting the current chunk in a prompt that also carries prior
// passages.
const (
	TextBegin = "---<TEXT_BEGIN>---"
	TextEnd   = "---<TEXT_END>---"
)

// Options are the translation settings that shape the system prompt.
type Options struct {
	SourceLanguage string
	Tone           string
	Domain         string
	// MediaType is one of the chunker media types. Empty means Markdown.
	MediaType string
	// Context is free text describing the document or its audience.
	Context  string
	Glossary glossary.Glossary
}

// Exchange is a previously translated chunk carried forward as context.
type Exchange struct {
	Source      string
	Translation string
}

// LanguageName returns the English display name for a BCP 47 tag, or the
// input unchanged when it is not a parseable tag.
func LanguageName(tag string) string {
	tag = strings.TrimSpace(tag)
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Tags().Name(t); name != "" {
		return name
	}
	return tag
}

// SystemPrompt renders the instructions for translating into target.
func SystemPrompt(target string, opts Options) string {
	var b strings.Builder
	b.WriteString("You are a professional translator.\n")
	fmt.Fprintf(&b, "Translate the user's text into %s.\n", LanguageName(target))
	b.WriteString("Preserve the meaning, tone and nuance of the original. Output only the translation, without explanations or commentary.\n")

	if opts.SourceLanguage != "" {
		fmt.Fprintf(&b, "The source text is written in %s.\n", LanguageName(opts.SourceLanguage))
	}
	if opts.Tone != "" {
		fmt.Fprintf(&b, "Use a %s tone.\n", opts.Tone)
	}
	if opts.Domain != "" {
		fmt.Fprintf(&b, "The text belongs to the %s domain; use the terminology and conventions of that field.\n", opts.Domain)
	}
	if clause := formatClause(opts.MediaType); clause != "" {
		b.WriteString(clause)
	}
	if ctx := strings.TrimSpace(opts.Context); ctx != "" {
		fmt.Fprintf(&b, "\nAdditional context:\n%s\n", ctx)
	}
	if len(opts.Glossary) > 0 {
		b.WriteString("\nUse the following glossary for consistent terminology:\n")
		b.WriteString(opts.Glossary.Format())
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatClause(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case chunker.MediaTypePlain:
		return ""
	case chunker.MediaTypeHTML:
		return heredoc.Doc(`
			The text is HTML. Keep every tag, attribute and entity exactly as it is
			and translate only the human-readable text between them.
		`)
	default:
		return heredoc.Doc(`
			The text is Markdown. Keep headings, lists, emphasis, links and code
			blocks intact; never translate the contents of code spans or fenced code.
		`)
	}
}

// UserPrompt renders a chunk for translation. A non-empty title is placed
// ahead of the text.
func UserPrompt(text, title string) string {
	if title = strings.TrimSpace(title); title != "" {
		return "Title: " + title + "\n\n" + text
	}
	return text
}

// UserPromptWithContext renders a chunk preceded by the chunks already
// translated, so terminology and style carry across chunk boundaries.
func UserPromptWithContext(text string, prior []Exchange) string {
	if len(prior) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString("The following passages come earlier in the same document and have already been translated:\n\n")
	for i, ex := range prior {
		fmt.Fprintf(&b, "[Passage %d]\nSource:\n%s\n\nTranslation:\n%s\n\n", i+1, ex.Source, ex.Translation)
	}
	b.WriteString(heredoc.Doc(`
		Keep terminology, style and tone consistent with these translations.
		Translate only the text in the section below.

	`))
	b.WriteString(TextBegin + "\n" + text + "\n" + TextEnd)
	return b.String()
}
