package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
	"github.com/GrxyScxr1/vertana-sub000/internal/prompt"
)

// BoundaryWindow is how many code points on each side of a seam are shown
// to the judge.
const BoundaryWindow = 200

// BoundaryIssueType categorizes a problem across a chunk seam.
type BoundaryIssueType string

const (
	BoundaryCoherence   BoundaryIssueType = "coherence"
	BoundaryStyle       BoundaryIssueType = "style"
	BoundaryReference   BoundaryIssueType = "reference"
	BoundaryTerminology BoundaryIssueType = "terminology"
)

// BoundaryIssue is a problem spanning two adjacent chunks.
type BoundaryIssue struct {
	Type        BoundaryIssueType `json:"type"`
	Description string            `json:"description"`
}

// Boundary is the judgment of the seam after chunk ChunkIndex.
type Boundary struct {
	ChunkIndex int             `json:"chunk_index"`
	Score      float64         `json:"score"`
	Issues     []BoundaryIssue `json:"issues"`
	// Fallback is set when the judge failed and the seam was passed with a
	// perfect score.
	Fallback   bool `json:"fallback,omitempty"`
	TokensUsed int  `json:"tokens_used"`
}

// Seam holds two adjacent chunks, before and after translation.
type Seam struct {
	// Index is the position of the earlier chunk.
	Index            int
	OriginalBefore   string
	OriginalAfter    string
	TranslatedBefore string
	TranslatedAfter  string
}

type boundaryJudgment struct {
	Score  float64           `json:"score" jsonschema:"how smoothly the translation reads across the seam, from 0 to 1"`
	Issues []judgedSeamIssue `json:"issues" jsonschema:"problems across the seam; empty when there are none"`
}

type judgedSeamIssue struct {
	Type        string `json:"type" jsonschema:"one of coherence, style, reference, terminology"`
	Description string `json:"description"`
}

// EvaluateBoundary judges whether the translation stays coherent across the
// seam between two chunks. Boundary judgments are advisory: any failure
// other than cancellation is logged and yields a perfect score with
// Fallback set.
func EvaluateBoundary(ctx context.Context, model llm.Model, seam Seam, opts Options) (Boundary, error) {
	if err := errs.CheckContext(ctx); err != nil {
		return Boundary{}, err
	}

	user := heredoc.Docf(`
		End of the earlier original passage:
		%s

		Start of the following original passage:
		%s

		End of the earlier translated passage:
		%s

		Start of the following translated passage:
		%s
	`,
		Tail(seam.OriginalBefore, BoundaryWindow),
		Head(seam.OriginalAfter, BoundaryWindow),
		Tail(seam.TranslatedBefore, BoundaryWindow),
		Head(seam.TranslatedAfter, BoundaryWindow),
	)

	j, used, err := llm.Structured[boundaryJudgment](ctx, model, boundarySystemPrompt(opts), user, "boundary_evaluation")
	if err != nil {
		if errors.Is(err, errs.ErrAborted) {
			return Boundary{}, err
		}
		logger.Warn("boundary judgment after chunk %d failed, passing seam: %v", seam.Index, err)
		return Boundary{ChunkIndex: seam.Index, Score: 1, Issues: []BoundaryIssue{}, Fallback: true, TokensUsed: used}, nil
	}

	b := Boundary{ChunkIndex: seam.Index, Score: clamp(j.Score), Issues: make([]BoundaryIssue, 0, len(j.Issues)), TokensUsed: used}
	for _, ji := range j.Issues {
		b.Issues = append(b.Issues, BoundaryIssue{Type: normalizeBoundaryType(ji.Type), Description: strings.TrimSpace(ji.Description)})
	}
	return b, nil
}

func boundarySystemPrompt(opts Options) string {
	var b strings.Builder
	b.WriteString(heredoc.Doc(`
		You review long translations that were produced in separate passages.
		You are shown the text on both sides of a seam between two passages,
		in the original and in translation. Judge only what crosses the seam:
		- coherence: the sentences or ideas do not connect
		- style: tone or register changes abruptly
		- reference: pronouns or references point to the wrong thing
		- terminology: the same term is translated differently
		Score from 0 to 1, where 1 means the seam is invisible.
	`))
	fmt.Fprintf(&b, "\nThe translation is in %s.", prompt.LanguageName(opts.TargetLanguage))
	if len(opts.Glossary) > 0 {
		b.WriteString("\n\nMandatory terms:\n")
		b.WriteString(opts.Glossary.Format())
	}
	return b.String()
}

func normalizeBoundaryType(t string) BoundaryIssueType {
	switch bt := BoundaryIssueType(strings.ToLower(strings.TrimSpace(t))); bt {
	case BoundaryCoherence, BoundaryStyle, BoundaryReference, BoundaryTerminology:
		return bt
	default:
		return BoundaryCoherence
	}
}

// Head returns the first n code points of s.
func Head(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Tail returns the last n code points of s.
func Tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
