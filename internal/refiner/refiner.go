// Package refiner improves translated chunks that score below a quality
// target. Each chunk runs an evaluate, fix, re-evaluate loop until it reaches
// the target or exhausts its iteration budget. Adjacent chunks can then be
// checked for coherence across their seams.
package refiner

import (
	"context"
	"fmt"
	"strings"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/evaluator"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
	"github.com/GrxyScxr1/vertana-sub000/internal/postprocess"
	"github.com/GrxyScxr1/vertana-sub000/internal/prompt"
)

const (
	DefaultTargetScore   = 0.85
	DefaultMaxIterations = 3
)

type Options struct {
	// TargetScore is the score at which a chunk is left alone.
	TargetScore float64
	// MaxIterations bounds the fix attempts per chunk.
	MaxIterations      int
	EvaluateBoundaries bool
	Glossary           glossary.Glossary
	SourceLanguage     string
	TargetLanguage     string
}

func (o Options) withDefaults() Options {
	if o.TargetScore <= 0 {
		o.TargetScore = DefaultTargetScore
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Iteration records one fix attempt on one chunk.
type Iteration struct {
	ChunkIndex  int               `json:"chunk_index"`
	Iteration   int               `json:"iteration"`
	Before      string            `json:"before"`
	After       string            `json:"after"`
	ScoreBefore float64           `json:"score_before"`
	ScoreAfter  float64           `json:"score_after"`
	Issues      []evaluator.Issue `json:"issues"`
}

type Result struct {
	Chunks []string
	// Scores holds the final score of each chunk.
	Scores              []float64
	TotalIterations     int
	Iterations          []Iteration
	BoundaryEvaluations []evaluator.Boundary
	// Score is the mean of Scores.
	Score      float64
	TokensUsed int
}

// RefineChunks refines each translated chunk against its original. Chunks
// are handled one after another and every step waits for the previous one.
// A length mismatch between originals and translated fails with
// errs.ErrInvalidArgument before any model call.
func RefineChunks(ctx context.Context, model llm.Model, originals, translated []string, opts Options) (Result, error) {
	if len(originals) != len(translated) {
		return Result{}, fmt.Errorf("%w: %d original chunks but %d translated chunks",
			errs.ErrInvalidArgument, len(originals), len(translated))
	}
	opts = opts.withDefaults()
	evalOpts := evaluator.Options{
		TargetLanguage: opts.TargetLanguage,
		SourceLanguage: opts.SourceLanguage,
		Glossary:       opts.Glossary,
	}

	res := Result{
		Chunks:     make([]string, len(translated)),
		Scores:     make([]float64, len(translated)),
		Iterations: []Iteration{},
	}
	for i := range originals {
		text, score, its, used, err := refineChunk(ctx, model, i, originals[i], translated[i], opts, evalOpts)
		res.TokensUsed += used
		if err != nil {
			return Result{}, fmt.Errorf("failed to refine chunk %d: %w", i, err)
		}
		res.Chunks[i] = text
		res.Scores[i] = score
		res.Iterations = append(res.Iterations, its...)
		res.TotalIterations += len(its)
	}

	if opts.EvaluateBoundaries && len(originals) >= 2 {
		res.BoundaryEvaluations = make([]evaluator.Boundary, 0, len(originals)-1)
		for i := range len(originals) - 1 {
			b, err := evaluator.EvaluateBoundary(ctx, model, evaluator.Seam{
				Index:            i,
				OriginalBefore:   originals[i],
				OriginalAfter:    originals[i+1],
				TranslatedBefore: res.Chunks[i],
				TranslatedAfter:  res.Chunks[i+1],
			}, evalOpts)
			if err != nil {
				return Result{}, err
			}
			res.TokensUsed += b.TokensUsed
			res.BoundaryEvaluations = append(res.BoundaryEvaluations, b)
		}
	}

	if n := len(res.Scores); n > 0 {
		var sum float64
		for _, s := range res.Scores {
			sum += s
		}
		res.Score = sum / float64(n)
	}
	return res, nil
}

func refineChunk(ctx context.Context, model llm.Model, index int, original, text string, opts Options, evalOpts evaluator.Options) (string, float64, []Iteration, int, error) {
	used := 0
	eval, err := evaluator.Evaluate(ctx, model, original, text, evalOpts)
	if err != nil {
		return "", 0, nil, used, err
	}
	used += eval.TokensUsed

	var its []Iteration
	for n := 1; eval.Score < opts.TargetScore && n <= opts.MaxIterations; n++ {
		if err := errs.CheckContext(ctx); err != nil {
			return "", 0, nil, used, err
		}

		resp, err := model.GenerateText(ctx, llm.TextRequest{
			System: systemPrompt(opts),
			User:   userPrompt(original, text, eval.Issues),
		})
		if err != nil {
			return "", 0, nil, used, errs.Upstream(ctx, err)
		}
		used += resp.TokensUsed
		fixed := postprocess.Translation(original, resp.Text)
		if fixed == "" {
			fixed = text
		}

		after, err := evaluator.Evaluate(ctx, model, original, fixed, evalOpts)
		if err != nil {
			return "", 0, nil, used, err
		}
		used += after.TokensUsed

		logger.Debug("chunk %d iteration %d: %.2f -> %.2f", index, n, eval.Score, after.Score)
		its = append(its, Iteration{
			ChunkIndex:  index,
			Iteration:   n,
			Before:      text,
			After:       fixed,
			ScoreBefore: eval.Score,
			ScoreAfter:  after.Score,
			Issues:      eval.Issues,
		})
		text, eval = fixed, after
	}
	return text, eval.Score, its, used, nil
}

func systemPrompt(opts Options) string {
	target := prompt.LanguageName(opts.TargetLanguage)
	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert %s editor reviewing a translation.

# YOUR TASK: FIX THE REPORTED ISSUES

You will receive the ORIGINAL text, the CURRENT translation and a list of
ISSUES found by a reviewer. Rewrite the translation so that every issue is
resolved.

**What to Preserve:**
- All factual content and meaning
- Names, numbers and proper nouns
- Markup, links and code exactly as they appear

Output ONLY the corrected translation in %s. Do not include any explanation.`, target, target)
	if opts.SourceLanguage != "" {
		fmt.Fprintf(&b, "\n\nThe original text is in %s.", prompt.LanguageName(opts.SourceLanguage))
	}
	if len(opts.Glossary) > 0 {
		b.WriteString("\n\nUse these term translations:\n")
		b.WriteString(opts.Glossary.Format())
	}
	return b.String()
}

func userPrompt(original, current string, issues []evaluator.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ORIGINAL:\n%s\n\nCURRENT TRANSLATION:\n%s\n\nISSUES:\n", original, current)
	if len(issues) == 0 {
		b.WriteString("- (none listed; improve overall accuracy and fluency)\n")
	}
	for _, issue := range issues {
		fmt.Fprintf(&b, "- [%s] %s", issue.Type, issue.Description)
		if loc := issue.Location; loc != nil {
			fmt.Fprintf(&b, " (at %q)", slice(current, loc.Start, loc.End))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func slice(s string, start, end int) string {
	r := []rune(s)
	if start < 0 || end > len(r) || start >= end {
		return ""
	}
	return string(r[start:end])
}
