// Package translation runs a whole document through the pipeline: chunking,
// per-chunk translation, optional refinement and aggregation of the result.
package translation

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/GrxyScxr1/vertana-sub000/internal/accumulator"
	"github.com/GrxyScxr1/vertana-sub000/internal/chunker"
	"github.com/GrxyScxr1/vertana-sub000/internal/contextsource"
	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/evaluator"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
	"github.com/GrxyScxr1/vertana-sub000/internal/orchestrator"
	"github.com/GrxyScxr1/vertana-sub000/internal/refiner"
	"github.com/GrxyScxr1/vertana-sub000/internal/tokens"
)

type Options struct {
	TargetLanguage string
	SourceLanguage string
	Tone           string
	Domain         string
	// MediaType selects the chunker and the format instructions. Empty
	// means Markdown.
	MediaType string
	Context   string
	// Title overrides the title found in the document.
	Title    string
	Glossary glossary.Glossary

	Models          []llm.Model
	EvaluatorModel  llm.Model
	DynamicGlossary bool
	MaxTerms        int
	Refinement      *refiner.Options

	MaxTokens int
	Counter   tokens.Counter
	// Chunker replaces the built-in chunker for MediaType.
	Chunker chunker.Func
	// DisableChunking translates the document as a single chunk.
	DisableChunking bool
	// ProtectCode masks code and markup while chunks are with the models.
	ProtectCode bool

	// ContextSources are gathered before the first chunk and appended to
	// Context.
	ContextSources []contextsource.Required
	// PassiveSources are offered to the models as tools.
	PassiveSources []contextsource.Passive
	MaxSteps       int

	// OnEvent, if set, is called by Translate with every event.
	OnEvent func(orchestrator.Event)
}

// Translation is the finished document.
type Translation struct {
	Text                 string                    `json:"text"`
	Title                string                    `json:"title,omitempty"`
	TokensUsed           int                       `json:"tokens_used"`
	ProcessingTime       time.Duration             `json:"processing_time"`
	QualityScore         *float64                  `json:"quality_score,omitempty"`
	RefinementIterations *int                      `json:"refinement_iterations,omitempty"`
	SelectedModel        string                    `json:"selected_model,omitempty"`
	Glossary             glossary.Glossary         `json:"glossary,omitempty"`
	Chunks               []orchestrator.ChunkEvent `json:"chunks"`
	BoundaryEvaluations  []evaluator.Boundary      `json:"boundary_evaluations,omitempty"`
}

// Stream prepares text and returns the orchestrator's event sequence for
// it. Preparation failures are delivered as the only element.
func Stream(ctx context.Context, text string, opts Options) iter.Seq2[orchestrator.Event, error] {
	return func(yield func(orchestrator.Event, error) bool) {
		chunks, oopts, err := prepare(ctx, text, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		for ev, err := range orchestrator.TranslateChunks(ctx, chunks, oopts) {
			if !yield(ev, err) || err != nil {
				return
			}
		}
	}
}

// Translate runs Stream to completion and assembles the Translation.
func Translate(ctx context.Context, text string, opts Options) (*Translation, error) {
	start := time.Now()
	names := make([]string, len(opts.Models))
	for i, m := range opts.Models {
		names[i] = m.Name()
	}
	st := accumulator.Seed(names...)
	var chunks []orchestrator.ChunkEvent

	for ev, err := range Stream(ctx, text, opts) {
		if err != nil {
			return nil, err
		}
		if opts.OnEvent != nil {
			opts.OnEvent(ev)
		}
		if c, ok := ev.(*orchestrator.ChunkEvent); ok {
			chunks = append(chunks, *c)
		}
		st = accumulator.Accumulate(st, ev)
	}
	done := st.Completion
	if done == nil {
		return nil, fmt.Errorf("%w: translation ended without completing", errs.ErrUpstream)
	}

	mediaType := chunker.NormalizeMediaType(opts.MediaType)
	out := strings.Join(done.Translations, joiner(mediaType))
	if mediaType == chunker.MediaTypeMarkdown {
		if front, _ := chunker.SplitFrontMatter(text); front != "" {
			out = strings.TrimRight(front+"\n\n"+out, "\n")
		}
	}
	t := &Translation{
		Text:                 out,
		Title:                ExtractTitle(out, mediaType),
		TokensUsed:           done.TotalTokensUsed,
		ProcessingTime:       time.Since(start),
		RefinementIterations: done.RefinementIterations,
		Glossary:             done.Glossary,
		Chunks:               chunks,
		BoundaryEvaluations:  done.BoundaryEvaluations,
	}
	if done.RefinementIterations != nil {
		t.QualityScore = done.QualityScore
	} else if avg, ok := st.AverageQualityScore(); ok {
		t.QualityScore = &avg
	}
	t.SelectedModel, _ = accumulator.MaxByValue(st.ModelWins)

	logger.Debug("translated %d chunks in %s using %d tokens", len(chunks), t.ProcessingTime, t.TokensUsed)
	return t, nil
}

// Chunk splits text the way Translate would.
func Chunk(ctx context.Context, text string, opts Options) ([]chunker.Chunk, error) {
	split := opts.Chunker
	switch {
	case opts.DisableChunking:
		split = chunker.Whole
	case split == nil:
		split = chunker.ForMediaType(opts.MediaType)
	}
	if chunker.NormalizeMediaType(opts.MediaType) == chunker.MediaTypeMarkdown {
		_, text = chunker.SplitFrontMatter(text)
	}
	return split(ctx, text, chunker.Options{MaxTokens: opts.MaxTokens, Counter: opts.Counter})
}

func prepare(ctx context.Context, text string, opts Options) ([]chunker.Chunk, orchestrator.Options, error) {
	if strings.TrimSpace(opts.TargetLanguage) == "" {
		return nil, orchestrator.Options{}, fmt.Errorf("%w: target language is required", errs.ErrInvalidArgument)
	}
	if err := opts.Glossary.Validate(); err != nil {
		return nil, orchestrator.Options{}, err
	}

	extra, err := contextsource.GatherAll(ctx, opts.ContextSources)
	if err != nil {
		return nil, orchestrator.Options{}, err
	}
	tools, err := contextsource.AsTools(opts.PassiveSources)
	if err != nil {
		return nil, orchestrator.Options{}, err
	}

	chunks, err := Chunk(ctx, text, opts)
	if err != nil {
		return nil, orchestrator.Options{}, fmt.Errorf("failed to chunk document: %w", err)
	}

	mediaType := chunker.NormalizeMediaType(opts.MediaType)
	title := opts.Title
	if title == "" {
		title = ExtractTitle(text, mediaType)
	}
	logger.Debug("split document into %d chunks", len(chunks))

	return chunks, orchestrator.Options{
		TargetLanguage:  opts.TargetLanguage,
		SourceLanguage:  opts.SourceLanguage,
		Tone:            opts.Tone,
		Domain:          opts.Domain,
		MediaType:       mediaType,
		Context:         joinNonEmpty(opts.Context, extra),
		Title:           title,
		Glossary:        opts.Glossary,
		Models:          opts.Models,
		EvaluatorModel:  opts.EvaluatorModel,
		DynamicGlossary: opts.DynamicGlossary,
		MaxTerms:        opts.MaxTerms,
		ProtectCode:     opts.ProtectCode,
		Tools:           tools,
		MaxSteps:        opts.MaxSteps,
		Refinement:      opts.Refinement,
	}, nil
}

func joiner(mediaType string) string {
	if mediaType == chunker.MediaTypeHTML {
		return "\n"
	}
	return "\n\n"
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
