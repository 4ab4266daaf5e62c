/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GrxyScxr1/vertana-sub000/internal/accumulator"
	"github.com/GrxyScxr1/vertana-sub000/internal/chunker"
	"github.com/GrxyScxr1/vertana-sub000/internal/contextsource"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
	"github.com/GrxyScxr1/vertana-sub000/internal/markdown"
	"github.com/GrxyScxr1/vertana-sub000/internal/orchestrator"
	"github.com/GrxyScxr1/vertana-sub000/internal/store"
	"github.com/GrxyScxr1/vertana-sub000/internal/translation"
	"github.com/GrxyScxr1/vertana-sub000/internal/validator"
)

var (
	inputFile    string
	outputFile   string
	mediaType    string
	modelSpecs   []string
	contextText  string
	contextFiles []string
	glossaryFile []string
	titleFlag    string

	noCache   bool
	fuzzy     float64
	saveTerms bool
	htmlOut   bool
	noChunk   bool
	protect   bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a document",
	Long: `Translate a Markdown, HTML or plain-text document.

The document is split into chunks that are translated in order. With more
than one --model every chunk is translated by each model and the evaluator
model keeps the best candidate.

Models are given as provider:model, for example:
  --model ollama:llama3.1:8b --model openrouter:google/gemini-2.5-flash

Options:
  --dynamic-glossary  Extract key terms from each chunk and reuse them
  --refine            Re-evaluate every chunk and fix weak ones
  --boundaries        With --refine, also judge the seams between chunks
  --save-terms        Store extracted terms in the persistent glossary`,
	Annotations: map[string]string{bindAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile != "-" && inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}
		if cfg.TargetLanguage == "" {
			return fmt.Errorf("--target language is required")
		}

		text, err := readInput(inputFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		mt := mediaTypeFor(mediaType, inputFile)
		source := resolveSource(cfg.SourceLanguage, text, mt)
		target := cfg.TargetLanguage

		db, err := openStore()
		if err != nil {
			logger.Warn("%v; continuing without translation memory", err)
			db = nil
		} else {
			defer db.Close()
		}

		logger.Section("Input")
		logger.Info("%s, %s → %s, %d bytes", mt, orAuto(source), target, len(text))

		if db != nil && !noCache && source != "" {
			if cached, ok := lookupMemory(ctx, db, text, source, target); ok {
				fmt.Fprintln(os.Stderr, "Using cached translation")
				if err := writeOutput(outputFile, render(cached, mt, "", target)); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, summary("Translated (from cache)", []row{
					{"Languages", source + " → " + target},
					{"Output", outputName()},
				}))
				return nil
			}
		}

		models, judge, err := buildModels(modelSpecs)
		if err != nil {
			return err
		}

		terms, err := initialGlossary(ctx, db, source, target)
		if err != nil {
			return err
		}

		opts := translation.Options{
			TargetLanguage:  target,
			SourceLanguage:  source,
			Tone:            cfg.Tone,
			Domain:          cfg.Domain,
			MediaType:       mt,
			Context:         contextText,
			Title:           titleFlag,
			Glossary:        terms,
			Models:          models,
			EvaluatorModel:  judge,
			DynamicGlossary: cfg.Glossary.Dynamic,
			MaxTerms:        cfg.Glossary.MaxTerms,
			Refinement:      cfg.RefinementOptions(),
			MaxTokens:       cfg.MaxTokens,
			DisableChunking: noChunk,
			ProtectCode:     protect,
		}
		for _, path := range contextFiles {
			opts.ContextSources = append(opts.ContextSources, contextsource.File{Path: path})
		}
		if db != nil && source != "" {
			opts.PassiveSources = append(opts.PassiveSources, contextsource.GlossaryLookup(db, source, target))
		}

		chunks, err := translation.Chunk(ctx, text, opts)
		if err != nil {
			return err
		}
		logger.Section("Translation")
		fmt.Fprintf(os.Stderr, "Translating %d chunk(s) with %d model(s)...\n", len(chunks), len(models))
		opts.OnEvent = progress(len(chunks))

		start := time.Now()
		result, err := translation.Translate(ctx, text, opts)
		if err != nil {
			return err
		}

		logger.Section("Validation")
		if err := validator.New(nil).Check(plainText(result.Text, mt), target); err != nil {
			fmt.Fprintln(os.Stderr, warnStyle.Render("Warning: "+err.Error()))
		}

		if err := writeOutput(outputFile, render(result.Text, mt, result.Title, target)); err != nil {
			return err
		}

		if db != nil {
			logger.Section("Recording")
			record(ctx, db, text, source, target, mt, result, time.Since(start))
		}

		fmt.Fprintln(os.Stderr, summary("Translated", summaryRows(source, target, result)))
		return nil
	},
}

func lookupMemory(ctx context.Context, db *store.Store, text, source, target string) (string, bool) {
	cached, ok, err := db.Lookup(ctx, text, source, target)
	if err != nil {
		logger.Warn("translation memory lookup failed: %v", err)
		return "", false
	}
	if ok || fuzzy <= 0 {
		return cached, ok
	}
	cached, ok, err = db.FuzzyLookup(ctx, text, source, target, fuzzy)
	if err != nil {
		logger.Warn("fuzzy translation memory lookup failed: %v", err)
		return "", false
	}
	return cached, ok
}

// initialGlossary merges the stored terms with --glossary files, later
// files taking precedence.
func initialGlossary(ctx context.Context, db *store.Store, source, target string) (glossary.Glossary, error) {
	var parts []glossary.Glossary
	if db != nil && source != "" {
		stored, err := db.Glossary(ctx, source, target)
		if err != nil {
			return nil, fmt.Errorf("failed to load glossary: %w", err)
		}
		parts = append(parts, stored)
	}
	for _, path := range glossaryFile {
		doc, err := glossary.LoadFile(path)
		if err != nil {
			return nil, err
		}
		parts = append(parts, doc.Terms)
	}
	return glossary.Merge(parts...), nil
}

func progress(total int) func(orchestrator.Event) {
	return func(ev orchestrator.Event) {
		chunk, ok := ev.(*orchestrator.ChunkEvent)
		if !ok {
			return
		}
		line := fmt.Sprintf("  chunk %d/%d  %d tokens", chunk.Index+1, total, chunk.TokensUsed)
		if chunk.SelectedModel != "" {
			line += "  " + chunk.SelectedModel
		}
		if chunk.QualityScore != nil {
			line += fmt.Sprintf(" (%.2f)", *chunk.QualityScore)
		}
		if n := len(chunk.NewTerms); n > 0 {
			line += fmt.Sprintf("  +%d terms", n)
		}
		fmt.Fprintln(os.Stderr, line)
		if logger.IsVerbose() {
			fmt.Fprintf(os.Stderr, "    %s\n    → %s\n", truncate(chunk.Source, 70), truncate(chunk.Translation, 70))
		}
	}
}

func orAuto(lang string) string {
	if lang == "" {
		return "auto"
	}
	return lang
}

func render(text, mt, title, target string) string {
	if htmlOut && mt == chunker.MediaTypeMarkdown {
		return markdown.Document([]byte(text), title, target)
	}
	return text
}

// record stores the translation in memory, saves new glossary terms and
// logs the run. Failures are reported but do not fail the command.
func record(ctx context.Context, db *store.Store, text, source, target, mt string, result *translation.Translation, elapsed time.Duration) {
	if !noCache && source != "" {
		if err := db.Remember(ctx, text, source, target, result.Text, result.SelectedModel); err != nil {
			logger.Warn("failed to save translation memory: %v", err)
		}
	}

	if saveTerms && source != "" {
		var found glossary.Glossary
		for _, ch := range result.Chunks {
			found = append(found, ch.NewTerms...)
		}
		if len(found) > 0 {
			if err := db.AddTerms(ctx, source, target, found); err != nil {
				logger.Warn("failed to save glossary terms: %v", err)
			} else {
				fmt.Fprintf(os.Stderr, "Saved %d glossary term(s)\n", len(found))
			}
		}
	}

	run := store.Run{
		SourceLang:           source,
		TargetLang:           target,
		MediaType:            mt,
		Title:                result.Title,
		TokensUsed:           result.TokensUsed,
		QualityScore:         result.QualityScore,
		RefinementIterations: result.RefinementIterations,
		WinningModel:         result.SelectedModel,
		Duration:             elapsed,
	}
	for _, ch := range result.Chunks {
		run.Chunks = append(run.Chunks, store.RunChunk{
			Index:          ch.Index,
			SourceText:     ch.Source,
			TranslatedText: ch.Translation,
			TokensUsed:     ch.TokensUsed,
			QualityScore:   ch.QualityScore,
			SelectedModel:  ch.SelectedModel,
		})
	}
	id, err := db.SaveRun(ctx, run)
	if err != nil {
		logger.Warn("failed to save run: %v", err)
		return
	}
	logger.Debug("saved run %s", id)
}

func summaryRows(source, target string, result *translation.Translation) []row {
	if source == "" {
		source = "?"
	}
	rows := []row{
		{"Languages", source + " → " + target},
		{"Title", result.Title},
		{"Chunks", strconv.Itoa(len(result.Chunks))},
		{"Tokens", strconv.Itoa(result.TokensUsed)},
		{"Time", result.ProcessingTime.Round(time.Millisecond).String()},
		{"Best model", result.SelectedModel},
	}
	if result.QualityScore != nil {
		rows = append(rows, row{"Quality", fmt.Sprintf("%.2f", *result.QualityScore)})
	}
	if result.RefinementIterations != nil {
		rows = append(rows, row{"Refinements", strconv.Itoa(*result.RefinementIterations)})
	}
	if n := len(result.Glossary); n > 0 {
		rows = append(rows, row{"Glossary", strconv.Itoa(n) + " term(s)"})
	}
	if len(result.Chunks) > 1 && result.SelectedModel != "" {
		var wins accumulator.State
		for _, ch := range result.Chunks {
			wins = accumulator.Accumulate(wins, &ch)
		}
		if len(wins.ModelWins) > 1 {
			parts := make([]string, 0, len(wins.ModelWins))
			for _, c := range wins.ModelWins {
				if c.Value == 0 {
					continue
				}
				parts = append(parts, fmt.Sprintf("%s %d", c.Key, c.Value))
			}
			rows = append(rows, row{"Wins", strings.Join(parts, ", ")})
		}
	}
	return append(rows, row{"Output", outputName()})
}

func outputName() string {
	if outputFile == "" || outputFile == "-" {
		return "stdout"
	}
	return outputFile
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to translate, - for stdin (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	translateCmd.Flags().StringP("source", "s", "", "Source language code, or auto to detect (default from config: auto)")
	translateCmd.Flags().StringP("target", "t", "", "Target language code (required unless configured)")
	translateCmd.Flags().StringVar(&mediaType, "media-type", "", "markdown, html or plain (default from file extension)")
	translateCmd.Flags().StringVar(&titleFlag, "title", "", "Document title given to the models (default from the document)")
	translateCmd.Flags().String("tone", "", "Desired tone, e.g. formal")
	translateCmd.Flags().String("domain", "", "Subject domain, e.g. medical")

	translateCmd.Flags().StringArrayVarP(&modelSpecs, "model", "m", nil, "Model as provider:model, repeatable (default from config)")
	translateCmd.Flags().String("evaluator", "", "Name of the configured model used as judge")
	translateCmd.Flags().Int("max-tokens", 0, "Chunk size in tokens")
	translateCmd.Flags().BoolVar(&noChunk, "no-chunk", false, "Translate the whole document in one request")
	translateCmd.Flags().BoolVar(&protect, "protect-code", false, "Hide code and markup from the models behind [PHn] markers")

	translateCmd.Flags().StringVar(&contextText, "context", "", "Background information for the models")
	translateCmd.Flags().StringArrayVar(&contextFiles, "context-file", nil, "File whose contents are added to the context, repeatable")
	translateCmd.Flags().StringArrayVarP(&glossaryFile, "glossary", "g", nil, "YAML glossary file, repeatable")
	translateCmd.Flags().Bool("dynamic-glossary", false, "Extract terms from each chunk and reuse them")
	translateCmd.Flags().Int("max-terms", 0, "Maximum terms extracted per chunk")
	translateCmd.Flags().BoolVar(&saveTerms, "save-terms", false, "Save extracted terms to the persistent glossary")

	translateCmd.Flags().Bool("refine", false, "Run the refinement pass")
	translateCmd.Flags().Bool("boundaries", false, "Evaluate chunk boundaries during refinement")
	translateCmd.Flags().Float64("target-score", 0, "Refinement stops when a chunk reaches this score")
	translateCmd.Flags().Int("max-iterations", 0, "Maximum refinement iterations per chunk")

	translateCmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable translation memory")
	translateCmd.Flags().Float64Var(&fuzzy, "fuzzy", 0, "Accept translation memory matches at this similarity (0-1)")
	translateCmd.Flags().BoolVar(&htmlOut, "html", false, "Render Markdown output as a standalone HTML page")

	translateCmd.MarkFlagRequired("input")
}
