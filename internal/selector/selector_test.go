package selector

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/evaluator"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm/llmtest"
)

// scoreByText judges a translation by looking up its text in scores.
func scoreByText(scores map[string]float64) *llmtest.Fake {
	return &llmtest.Fake{StructuredFunc: func(_ context.Context, req llm.StructuredRequest) (llm.StructuredResponse, error) {
		for text, score := range scores {
			if strings.HasSuffix(strings.TrimSpace(req.User), text) {
				return llmtest.JSON(map[string]any{"score": score, "issues": []any{}})(context.Background(), req)
			}
		}
		return llmtest.JSON(`{"score": 0, "issues": []}`)(context.Background(), req)
	}}
}

func TestSelectBestEmpty(t *testing.T) {
	fake := &llmtest.Fake{}
	_, err := SelectBest(context.Background(), fake, "text", nil, evaluator.Options{})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.Zero(t, fake.Calls())
}

func TestSelectBestRanks(t *testing.T) {
	judge := scoreByText(map[string]float64{"low": 0.4, "high": 0.9, "mid": 0.7})

	sel, err := SelectBest(context.Background(), judge, "src", []Candidate{
		{Text: "low", Metadata: "a"},
		{Text: "high", Metadata: "b"},
		{Text: "mid", Metadata: "c"},
	}, evaluator.Options{TargetLanguage: "de"})
	require.NoError(t, err)

	assert.Equal(t, "high", sel.Best.Text)
	assert.Equal(t, "b", sel.Best.Metadata)
	assert.Equal(t, 1, sel.Best.Rank)
	require.Len(t, sel.All, 3)
	for i, want := range []string{"high", "mid", "low"} {
		assert.Equal(t, want, sel.All[i].Text)
		assert.Equal(t, i+1, sel.All[i].Rank)
	}
	assert.Equal(t, 3, sel.TokensUsed)
}

func TestSelectBestTieKeepsInputOrder(t *testing.T) {
	judge := &llmtest.Fake{StructuredFunc: llmtest.JSON(`{"score": 0.8, "issues": []}`)}

	for range 5 {
		sel, err := SelectBest(context.Background(), judge, "src", []Candidate{
			{Text: "first"}, {Text: "second"}, {Text: "third"},
		}, evaluator.Options{})
		require.NoError(t, err)
		assert.Equal(t, "first", sel.Best.Text)
		assert.Equal(t, "second", sel.All[1].Text)
		assert.Equal(t, "third", sel.All[2].Text)
	}
}

func TestSelectBestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SelectBest(ctx, &llmtest.Fake{}, "src", []Candidate{{Text: "x"}}, evaluator.Options{})
	assert.ErrorIs(t, err, errs.ErrAborted)
}
