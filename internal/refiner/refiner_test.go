package refiner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/evaluator"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm/llmtest"
)

func score(s float64, issues ...map[string]any) map[string]any {
	if issues == nil {
		issues = []map[string]any{}
	}
	return map[string]any{"score": s, "issues": issues}
}

// judge answers translation evaluations with eval and boundary evaluations
// with boundary.
func judge(eval, boundary func(context.Context, llm.StructuredRequest) (llm.StructuredResponse, error)) func(context.Context, llm.StructuredRequest) (llm.StructuredResponse, error) {
	return func(ctx context.Context, req llm.StructuredRequest) (llm.StructuredResponse, error) {
		if req.Name == "boundary_evaluation" {
			return boundary(ctx, req)
		}
		return eval(ctx, req)
	}
}

func TestRefineChunksMismatch(t *testing.T) {
	fake := &llmtest.Fake{}
	_, err := RefineChunks(context.Background(), fake, []string{"a", "b"}, []string{"x"}, Options{})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.Zero(t, fake.Calls())
}

func TestRefineChunksAlreadyGood(t *testing.T) {
	fake := &llmtest.Fake{StructuredFunc: llmtest.JSON(score(0.95))}

	res, err := RefineChunks(context.Background(), fake, []string{"Hello"}, []string{"Hallo"}, Options{TargetLanguage: "de"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hallo"}, res.Chunks)
	assert.Equal(t, []float64{0.95}, res.Scores)
	assert.Zero(t, res.TotalIterations)
	assert.Empty(t, res.Iterations)
	assert.InDelta(t, 0.95, res.Score, 1e-9)
	assert.Empty(t, fake.TextRequests())
	assert.Equal(t, 1, res.TokensUsed)
}

func TestRefineChunksConverges(t *testing.T) {
	fake := &llmtest.Fake{
		StructuredFunc: llmtest.JSON(
			score(0.5, map[string]any{"type": "fluency", "description": "stiff wording", "start": 0, "end": 5}),
			score(0.9),
		),
		TextFunc: llmtest.Reply("Hallo Welt", 7),
	}

	res, err := RefineChunks(context.Background(), fake, []string{"Hello world"}, []string{"Hallo Erde"}, Options{
		TargetLanguage: "de",
		Glossary:       glossary.Glossary{{Original: "world", Translated: "Welt"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hallo Welt"}, res.Chunks)
	assert.Equal(t, 1, res.TotalIterations)
	require.Len(t, res.Iterations, 1)
	it := res.Iterations[0]
	assert.Equal(t, 0, it.ChunkIndex)
	assert.Equal(t, 1, it.Iteration)
	assert.Equal(t, "Hallo Erde", it.Before)
	assert.Equal(t, "Hallo Welt", it.After)
	assert.InDelta(t, 0.5, it.ScoreBefore, 1e-9)
	assert.InDelta(t, 0.9, it.ScoreAfter, 1e-9)
	require.NotEmpty(t, it.Issues)
	assert.Equal(t, evaluator.IssueFluency, it.Issues[0].Type)
	assert.Equal(t, 1+7+1, res.TokensUsed)

	reqs := fake.TextRequests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].User, "[fluency] stiff wording (at \"Hallo\")")
	assert.Contains(t, reqs[0].User, "Hallo Erde")
	assert.Contains(t, reqs[0].System, "German")
	assert.Contains(t, reqs[0].System, `"world" → "Welt"`)
}

func TestRefineChunksIterationBound(t *testing.T) {
	fake := &llmtest.Fake{
		StructuredFunc: llmtest.JSON(score(0.2)),
		TextFunc:       llmtest.Replies(1, "try one", "try two", "try three"),
	}
	originals := []string{"one", "two", "three"}

	res, err := RefineChunks(context.Background(), fake, originals, []string{"x", "y", "z"}, Options{MaxIterations: 2})
	require.NoError(t, err)

	assert.LessOrEqual(t, res.TotalIterations, len(originals)*2)
	assert.Equal(t, 6, res.TotalIterations)
	assert.Len(t, res.Iterations, 6)
	for i, it := range res.Iterations {
		assert.Equal(t, i/2, it.ChunkIndex)
		assert.Equal(t, i%2+1, it.Iteration)
	}
	assert.Len(t, fake.TextRequests(), 6)
}

func TestRefineChunksEmptyFixKeepsText(t *testing.T) {
	fake := &llmtest.Fake{
		StructuredFunc: llmtest.JSON(score(0.1)),
		TextFunc:       llmtest.Reply("   ", 1),
	}

	res, err := RefineChunks(context.Background(), fake, []string{"a"}, []string{"b"}, Options{MaxIterations: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Chunks)
}

func TestRefineChunksBoundaries(t *testing.T) {
	fake := &llmtest.Fake{StructuredFunc: judge(
		llmtest.JSON(score(0.9)),
		llmtest.JSON(map[string]any{"score": 0.6, "issues": []map[string]any{
			{"type": "reference", "description": "pronoun has no antecedent"},
		}}),
	)}

	res, err := RefineChunks(context.Background(), fake,
		[]string{"a", "b", "c"}, []string{"x", "y", "z"}, Options{EvaluateBoundaries: true})
	require.NoError(t, err)

	require.Len(t, res.BoundaryEvaluations, 2)
	for i, b := range res.BoundaryEvaluations {
		assert.Equal(t, i, b.ChunkIndex)
		assert.InDelta(t, 0.6, b.Score, 1e-9)
		assert.False(t, b.Fallback)
		require.Len(t, b.Issues, 1)
		assert.Equal(t, evaluator.BoundaryReference, b.Issues[0].Type)
	}
	assert.Zero(t, res.TotalIterations)
}

func TestRefineChunksBoundaryFailureIsMasked(t *testing.T) {
	fake := &llmtest.Fake{StructuredFunc: judge(
		llmtest.JSON(score(0.9)),
		llmtest.Fail(fmt.Errorf("%w: judge offline", errs.ErrUpstream)),
	)}

	res, err := RefineChunks(context.Background(), fake, []string{"a", "b"}, []string{"x", "y"}, Options{EvaluateBoundaries: true})
	require.NoError(t, err)
	require.Len(t, res.BoundaryEvaluations, 1)
	assert.True(t, res.BoundaryEvaluations[0].Fallback)
	assert.Equal(t, 1.0, res.BoundaryEvaluations[0].Score)
}

func TestRefineChunksSingleChunkSkipsBoundaries(t *testing.T) {
	fake := &llmtest.Fake{StructuredFunc: llmtest.JSON(score(0.9))}

	res, err := RefineChunks(context.Background(), fake, []string{"a"}, []string{"x"}, Options{EvaluateBoundaries: true})
	require.NoError(t, err)
	assert.Empty(t, res.BoundaryEvaluations)
	assert.Len(t, fake.StructuredRequests(), 1)
}

func TestRefineChunksFixFailure(t *testing.T) {
	fake := &llmtest.Fake{
		StructuredFunc: llmtest.JSON(score(0.1)),
		TextFunc: func(context.Context, llm.TextRequest) (llm.TextResponse, error) {
			return llm.TextResponse{}, fmt.Errorf("%w: overloaded", errs.ErrUpstream)
		},
	}

	_, err := RefineChunks(context.Background(), fake, []string{"a"}, []string{"b"}, Options{})
	assert.ErrorIs(t, err, errs.ErrUpstream)
}

func TestRefineChunksCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &llmtest.Fake{}

	_, err := RefineChunks(ctx, fake, []string{"a"}, []string{"b"}, Options{})
	assert.ErrorIs(t, err, errs.ErrAborted)
	assert.Zero(t, fake.Calls())
}
