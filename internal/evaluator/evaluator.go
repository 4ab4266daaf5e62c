// Package evaluator scores translations with a judge model.
//
// Scores fall in [0, 1]: 0.9 and above is excellent, 0.7 to 0.9 good, 0.5 to
// 0.7 acceptable and anything lower poor. Judgments are advisory; the same
// input may score differently across calls.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
	"github.com/GrxyScxr1/vertana-sub000/internal/prompt"
)

// IssueType categorizes a problem found in a translation.
type IssueType string

const (
	IssueAccuracy    IssueType = "accuracy"
	IssueFluency     IssueType = "fluency"
	IssueTerminology IssueType = "terminology"
	IssueStyle       IssueType = "style"
)

// Location is a span of the translated text in code points, Start inclusive
// and End exclusive.
type Location struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Issue is one problem found in a translation.
type Issue struct {
	Type        IssueType `json:"type"`
	Description string    `json:"description"`
	Location    *Location `json:"location,omitempty"`
}

// Result is the judgment of one translation.
type Result struct {
	Score  float64 `json:"score"`
	Issues []Issue `json:"issues"`
	// Fallback is set when the judge reply could not be decoded and the
	// translation was passed with a perfect score.
	Fallback   bool `json:"fallback,omitempty"`
	TokensUsed int  `json:"tokens_used"`
}

// Options describe the translation being judged.
type Options struct {
	TargetLanguage string
	SourceLanguage string
	// Glossary entries are mandatory mappings; deviations are reported as
	// terminology issues.
	Glossary glossary.Glossary
}

// judgment is the structured reply requested from the judge.
type judgment struct {
	Score  float64       `json:"score" jsonschema:"overall quality from 0 (unusable) to 1 (flawless)"`
	Issues []judgedIssue `json:"issues" jsonschema:"problems found, most severe first; empty when there are none"`
}

type judgedIssue struct {
	Type        string `json:"type" jsonschema:"one of accuracy, fluency, terminology, style"`
	Description string `json:"description" jsonschema:"what is wrong and how to fix it"`
	Start       *int   `json:"start,omitempty" jsonschema:"character offset in the translation where the problem starts"`
	End         *int   `json:"end,omitempty" jsonschema:"character offset in the translation where the problem ends (exclusive)"`
}

// Evaluate judges translated against original. A judge reply that cannot be
// decoded yields a perfect score with Fallback set; other model failures are
// returned.
func Evaluate(ctx context.Context, model llm.Model, original, translated string, opts Options) (Result, error) {
	if err := errs.CheckContext(ctx); err != nil {
		return Result{}, err
	}

	j, used, err := llm.Structured[judgment](ctx, model, systemPrompt(opts), userPrompt(original, translated), "translation_evaluation")
	if err != nil {
		if !errors.Is(err, errs.ErrMalformedOutput) {
			return Result{}, fmt.Errorf("failed to evaluate translation: %w", err)
		}
		logger.Warn("evaluator %s returned an unusable judgment, passing translation: %v", model.Name(), err)
		return Result{Score: 1, Issues: []Issue{}, Fallback: true, TokensUsed: used}, nil
	}

	res := Result{
		Score:      clamp(j.Score),
		Issues:     normalizeIssues(j.Issues, utf8.RuneCountInString(translated)),
		TokensUsed: used,
	}
	res.Issues = append(res.Issues, glossaryIssues(original, translated, opts.Glossary, res.Issues)...)
	return res, nil
}

func systemPrompt(opts Options) string {
	var b strings.Builder
	b.WriteString(heredoc.Doc(`
		You are an expert translation reviewer. Compare a translation with its
		original and judge its quality.

		Score from 0 to 1:
		- 0.9 or higher: excellent, publishable as is
		- 0.7 to 0.9: good, minor issues
		- 0.5 to 0.7: acceptable, noticeable issues
		- below 0.5: poor, meaning is lost or distorted

		Report each problem with a type:
		- accuracy: meaning added, omitted or changed
		- fluency: grammar, spelling or unnatural phrasing
		- terminology: wrong or inconsistent terms
		- style: tone or register does not match the original
		When you can, give the start and end character offsets of the problem
		in the translation.
	`))
	fmt.Fprintf(&b, "\nThe translation should be in %s.", prompt.LanguageName(opts.TargetLanguage))
	if opts.SourceLanguage != "" {
		fmt.Fprintf(&b, " The original is in %s.", prompt.LanguageName(opts.SourceLanguage))
	}
	if len(opts.Glossary) > 0 {
		b.WriteString("\n\nThe following terms are mandatory; report any deviation as a terminology issue:\n")
		b.WriteString(opts.Glossary.Format())
	}
	return b.String()
}

func userPrompt(original, translated string) string {
	return heredoc.Docf(`
		Original:
		%s

		Translation:
		%s
	`, original, translated)
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

func normalizeIssueType(t string) IssueType {
	switch it := IssueType(strings.ToLower(strings.TrimSpace(t))); it {
	case IssueAccuracy, IssueFluency, IssueTerminology, IssueStyle:
		return it
	default:
		return IssueAccuracy
	}
}

// normalizeIssues maps judge issues onto Issue, keeping a location only when
// it is a non-empty span inside the translation.
func normalizeIssues(in []judgedIssue, length int) []Issue {
	out := make([]Issue, 0, len(in))
	for _, ji := range in {
		issue := Issue{Type: normalizeIssueType(ji.Type), Description: strings.TrimSpace(ji.Description)}
		if ji.Start != nil && ji.End != nil && *ji.Start >= 0 && *ji.Start < *ji.End && *ji.End <= length {
			issue.Location = &Location{Start: *ji.Start, End: *ji.End}
		}
		out = append(out, issue)
	}
	return out
}

// glossaryIssues reports mandated terms that occur in the original but whose
// translation is missing from the translated text, unless the judge already
// flagged them.
func glossaryIssues(original, translated string, g glossary.Glossary, found []Issue) []Issue {
	var out []Issue
	lowerOriginal := strings.ToLower(original)
	lowerTranslated := strings.ToLower(translated)
	for _, e := range g {
		if e.Original == "" || e.Translated == "" {
			continue
		}
		if !strings.Contains(lowerOriginal, strings.ToLower(e.Original)) {
			continue
		}
		if strings.Contains(lowerTranslated, strings.ToLower(e.Translated)) {
			continue
		}
		if mentioned(found, e.Original) {
			continue
		}
		out = append(out, Issue{
			Type:        IssueTerminology,
			Description: fmt.Sprintf("%q must be translated as %q", e.Original, e.Translated),
		})
	}
	return out
}

func mentioned(issues []Issue, term string) bool {
	term = strings.ToLower(term)
	for _, issue := range issues {
		if issue.Type == IssueTerminology && strings.Contains(strings.ToLower(issue.Description), term) {
			return true
		}
	}
	return false
}
