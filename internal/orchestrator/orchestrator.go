// Package orchestrator translates a sequence of chunks with one or more
// models, carrying context and terminology from each chunk into the next.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/GrxyScxr1/vertana-sub000/internal/chunker"
	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/evaluator"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
	"github.com/GrxyScxr1/vertana-sub000/internal/placeholder"
	"github.com/GrxyScxr1/vertana-sub000/internal/postprocess"
	"github.com/GrxyScxr1/vertana-sub000/internal/prompt"
	"github.com/GrxyScxr1/vertana-sub000/internal/refiner"
	"github.com/GrxyScxr1/vertana-sub000/internal/selector"
	"github.com/GrxyScxr1/vertana-sub000/internal/terms"
)

type Options struct {
	TargetLanguage string
	SourceLanguage string
	Tone           string
	Domain         string
	MediaType      string
	Context        string
	// Title is shown to the models with the first chunk only.
	Title    string
	Glossary glossary.Glossary

	// Models translate every chunk concurrently. With more than one model
	// the best candidate is selected by EvaluatorModel.
	Models []llm.Model
	// EvaluatorModel judges candidates, extracts terms and refines. Nil
	// means the first of Models.
	EvaluatorModel llm.Model

	// DynamicGlossary extracts terms from each translated chunk and adds
	// them to the glossary used for later chunks.
	DynamicGlossary bool
	MaxTerms        int

	// ProtectCode hides code and markup behind markers while a chunk is
	// with the models.
	ProtectCode bool

	// Tools are offered to the translating models.
	Tools    []llm.Tool
	MaxSteps int

	// Refinement, when set, refines all chunks after translation.
	Refinement *refiner.Options
}

func (o Options) judge() llm.Model {
	if o.EvaluatorModel != nil {
		return o.EvaluatorModel
	}
	return o.Models[0]
}

// TranslateChunks returns the event sequence for translating chunks: one
// *ChunkEvent per chunk in order, then one *CompleteEvent. A failure ends
// the sequence with a nil event and the error. Chunks are translated one at
// a time and only when the consumer asks for the next event.
func TranslateChunks(ctx context.Context, chunks []chunker.Chunk, opts Options) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		if len(opts.Models) == 0 {
			yield(nil, fmt.Errorf("%w: at least one model is required", errs.ErrPrecondition))
			return
		}

		st := state{glossary: opts.Glossary}
		for _, c := range chunks {
			next, ev, err := st.translate(ctx, c, opts)
			if err != nil {
				yield(nil, err)
				return
			}
			st = next
			if !yield(ev, nil) {
				return
			}
		}

		done, err := st.complete(ctx, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(done, nil)
	}
}

// state is what the translation of one chunk hands to the next. Every step
// returns a new value; slices are only ever appended to.
type state struct {
	glossary     glossary.Glossary
	prior        []prompt.Exchange
	sources      []string
	translations []string
	scores       []float64
	tokens       int
}

func (s state) translate(ctx context.Context, c chunker.Chunk, opts Options) (state, *ChunkEvent, error) {
	if err := errs.CheckContext(ctx); err != nil {
		return s, nil, err
	}

	guard := placeholder.Protected{Text: c.Content}
	if opts.ProtectCode {
		guard = placeholder.Protect(c.Content, opts.MediaType)
	}

	system := prompt.SystemPrompt(opts.TargetLanguage, prompt.Options{
		SourceLanguage: opts.SourceLanguage,
		Tone:           opts.Tone,
		Domain:         opts.Domain,
		MediaType:      opts.MediaType,
		Context:        opts.Context,
		Glossary:       s.glossary,
	})
	if guard.Len() > 0 {
		system += "\n" + placeholder.Hint
	}
	var user string
	if len(s.prior) == 0 {
		user = prompt.UserPrompt(guard.Text, opts.Title)
	} else {
		user = prompt.UserPromptWithContext(guard.Text, s.prior)
	}

	candidates, used, err := generate(ctx, opts, llm.TextRequest{
		System:   system,
		User:     user,
		Tools:    opts.Tools,
		MaxSteps: opts.MaxSteps,
	}, guard.Text)
	if err != nil {
		return s, nil, fmt.Errorf("failed to translate chunk %d: %w", c.Index, err)
	}
	for i := range candidates {
		restored, missing := guard.Restore(candidates[i].Text)
		if len(missing) > 0 {
			logger.Warn("chunk %d: %v dropped markers %s", c.Index, candidates[i].Metadata, placeholder.Missing(missing))
		}
		candidates[i].Text = restored
	}

	ev := &ChunkEvent{Index: c.Index, Source: c.Content, Translation: candidates[0].Text}
	evalOpts := evaluator.Options{
		TargetLanguage: opts.TargetLanguage,
		SourceLanguage: opts.SourceLanguage,
		Glossary:       s.glossary,
	}
	if len(candidates) > 1 {
		sel, err := selector.SelectBest(ctx, opts.judge(), c.Content, candidates, evalOpts)
		if err != nil {
			return s, nil, fmt.Errorf("failed to select translation for chunk %d: %w", c.Index, err)
		}
		used += sel.TokensUsed
		score := sel.Best.Score
		ev.Translation = sel.Best.Text
		ev.QualityScore = &score
		ev.SelectedModel, _ = sel.Best.Metadata.(string)
		s.scores = append(s.scores, score)
	}

	if opts.DynamicGlossary {
		found, n, err := terms.Extract(ctx, opts.judge(), c.Content, ev.Translation, terms.Options{
			MaxTerms:       opts.MaxTerms,
			SourceLanguage: opts.SourceLanguage,
			TargetLanguage: opts.TargetLanguage,
		})
		used += n
		switch {
		case errors.Is(err, errs.ErrMalformedOutput):
			logger.Warn("term extraction for chunk %d returned an unusable reply: %v", c.Index, err)
		case err != nil:
			return s, nil, fmt.Errorf("failed to extract terms from chunk %d: %w", c.Index, err)
		}
		for _, e := range found {
			if s.glossary.ContainsFold(e.Original) || ev.NewTerms.ContainsFold(e.Original) {
				continue
			}
			ev.NewTerms = append(ev.NewTerms, e)
		}
		s.glossary = append(s.glossary[:len(s.glossary):len(s.glossary)], ev.NewTerms...)
	}

	ev.TokensUsed = used
	s.tokens += used
	s.prior = append(s.prior, prompt.Exchange{Source: c.Content, Translation: ev.Translation})
	s.sources = append(s.sources, c.Content)
	s.translations = append(s.translations, ev.Translation)
	logger.Debug("chunk %d translated (%d tokens, %d new terms)", c.Index, used, len(ev.NewTerms))
	return s, ev, nil
}

// generate asks every model for a translation at once and waits for all of
// them. Candidates keep the order of opts.Models.
func generate(ctx context.Context, opts Options, req llm.TextRequest, source string) ([]selector.Candidate, int, error) {
	resps := make([]llm.TextResponse, len(opts.Models))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range opts.Models {
		g.Go(func() error {
			resp, err := m.GenerateText(gctx, req)
			if err != nil {
				return fmt.Errorf("model %s: %w", m.Name(), errs.Upstream(ctx, err))
			}
			resps[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	candidates := make([]selector.Candidate, len(resps))
	used := 0
	for i, resp := range resps {
		used += resp.TokensUsed
		candidates[i] = selector.Candidate{
			Text:     postprocess.Translation(source, resp.Text),
			Metadata: opts.Models[i].Name(),
		}
	}
	return candidates, used, nil
}

func (s state) complete(ctx context.Context, opts Options) (*CompleteEvent, error) {
	if err := errs.CheckContext(ctx); err != nil {
		return nil, err
	}

	done := &CompleteEvent{
		Translations:    append([]string{}, s.translations...),
		TotalTokensUsed: s.tokens,
		Glossary:        append(glossary.Glossary{}, s.glossary...),
	}
	if len(s.scores) > 0 {
		done.QualityScore = mean(s.scores)
	}

	if opts.Refinement != nil && len(s.translations) > 0 {
		ropts := *opts.Refinement
		ropts.Glossary = s.glossary
		if ropts.TargetLanguage == "" {
			ropts.TargetLanguage = opts.TargetLanguage
		}
		if ropts.SourceLanguage == "" {
			ropts.SourceLanguage = opts.SourceLanguage
		}
		res, err := refiner.RefineChunks(ctx, opts.judge(), s.sources, s.translations, ropts)
		if err != nil {
			return nil, err
		}
		done.Translations = res.Chunks
		done.TotalTokensUsed += res.TokensUsed
		score := res.Score
		iterations := res.TotalIterations
		done.QualityScore = &score
		done.RefinementIterations = &iterations
		done.Refinements = res.Iterations
		done.BoundaryEvaluations = res.BoundaryEvaluations
	}
	return done, nil
}

func mean(xs []float64) *float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	return &m
}
