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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/GrxyScxr1/vertana-sub000/internal/config"
	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
)

var version = "0.3.0"

var (
	configFile string
	v          = viper.New()
	cfg        *config.Config
)

// bindAnnotation marks commands whose flags override configuration keys.
const bindAnnotation = "vertana/bind-config"

// flagKeys maps flag names to the configuration keys they override.
var flagKeys = map[string]string{
	"verbose":          "verbose",
	"db":               "database",
	"target":           "target",
	"source":           "source",
	"tone":             "tone",
	"domain":           "domain",
	"evaluator":        "evaluator",
	"max-tokens":       "max_tokens",
	"refine":           "refinement.enabled",
	"boundaries":       "refinement.boundaries",
	"target-score":     "refinement.target_score",
	"max-iterations":   "refinement.max_iterations",
	"dynamic-glossary": "glossary.dynamic",
	"max-terms":        "glossary.max_terms",
	"addr":             "server.addr",
}

var rootCmd = &cobra.Command{
	Use:   "vertana",
	Short: "Long-form document translation with LLMs",
	Long: `Vertana translates long Markdown, HTML and plain-text documents with one
or more language models.

Documents are split into structure-aware chunks and translated in order,
each chunk seeing the previous ones. With several models every chunk is
translated by all of them and a judge model keeps the best candidate.
Terminology is kept consistent with a glossary that can grow as the
document is translated, and an optional refinement pass fixes the
weakest chunks and the seams between them.

Use "vertana translate --help" for translation options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd)
		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.SetVerbose(cfg.Verbose)
		return nil
	},
}

func bindFlags(cmd *cobra.Command) {
	bindAll := cmd.Annotations[bindAnnotation] != ""
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if !bindAll && f.Name != "verbose" && f.Name != "db" {
			return
		}
		// BindPFlag only fails on a nil flag.
		_ = v.BindPFlag(key, f)
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $HOME/.config/vertana/config.yaml or ./vertana.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print progress and debug output")
	rootCmd.PersistentFlags().String("db", "", "SQLite database for translation memory, glossary and run history")
}
