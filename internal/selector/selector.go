// Package selector picks the best of several candidate translations.
package selector

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/evaluator"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
)

// Candidate is one proposed translation. Metadata is carried through
// untouched, typically the name of the model that produced it.
type Candidate struct {
	Text     string
	Metadata any
}

// Ranked is a candidate with its judgment. Rank 1 is the best.
type Ranked struct {
	Candidate
	Score  float64
	Rank   int
	Issues []evaluator.Issue
}

// Selection is the outcome of SelectBest. All is ordered by rank.
type Selection struct {
	Best       Ranked
	All        []Ranked
	TokensUsed int
}

// SelectBest evaluates every candidate against source and ranks them by
// descending score. Equal scores keep their input order, so the first
// submitted candidate wins a tie.
func SelectBest(ctx context.Context, judge llm.Model, source string, candidates []Candidate, opts evaluator.Options) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, fmt.Errorf("%w: no candidates to select from", errs.ErrInvalidArgument)
	}

	sel := Selection{All: make([]Ranked, 0, len(candidates))}
	for i, c := range candidates {
		res, err := evaluator.Evaluate(ctx, judge, source, c.Text, opts)
		if err != nil {
			return Selection{}, fmt.Errorf("failed to evaluate candidate %d: %w", i, err)
		}
		sel.TokensUsed += res.TokensUsed
		sel.All = append(sel.All, Ranked{Candidate: c, Score: res.Score, Issues: res.Issues})
	}

	slices.SortStableFunc(sel.All, func(a, b Ranked) int {
		return cmp.Compare(b.Score, a.Score)
	})
	for i := range sel.All {
		sel.All[i].Rank = i + 1
	}
	sel.Best = sel.All[0]
	logger.Debug("selected candidate %v with score %.2f of %d", sel.Best.Metadata, sel.Best.Score, len(candidates))
	return sel, nil
}
