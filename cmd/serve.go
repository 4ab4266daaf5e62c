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
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/GrxyScxr1/vertana-sub000/internal/logger"
	"github.com/GrxyScxr1/vertana-sub000/internal/server"
	"github.com/GrxyScxr1/vertana-sub000/internal/store"
)

var serveModels []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the translation API over HTTP",
	Long: `Start an HTTP server exposing:

  POST /v1/translate         translate a document, JSON result (?render=html)
  POST /v1/translate/stream  translate with server-sent progress events
  POST /v1/chunks            preview chunking
  GET  /healthz              health and configured models`,
	Annotations: map[string]string{bindAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		models, judge, err := buildModels(serveModels)
		if err != nil {
			return err
		}
		if !cfg.Verbose {
			gin.SetMode(gin.ReleaseMode)
		}

		var db *store.Store
		if opened, err := openStore(); err != nil {
			logger.Warn("%v; serving without the stored glossary", err)
		} else {
			db = opened
			defer db.Close()
		}

		srv := server.New(server.Options{
			Models:         models,
			EvaluatorModel: judge,
			Store:          db,
			Defaults: server.Defaults{
				SourceLanguage:  cfg.SourceLanguage,
				TargetLanguage:  cfg.TargetLanguage,
				Tone:            cfg.Tone,
				Domain:          cfg.Domain,
				MaxTokens:       cfg.MaxTokens,
				DynamicGlossary: cfg.Glossary.Dynamic,
				MaxTerms:        cfg.Glossary.MaxTerms,
				Refinement:      cfg.RefinementOptions(),
			},
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default from config: 127.0.0.1:8080)")
	serveCmd.Flags().StringArrayVarP(&serveModels, "model", "m", nil, "Model as provider:model, repeatable (default from config)")
	serveCmd.Flags().String("evaluator", "", "Name of the configured model used as judge")
	serveCmd.Flags().StringP("target", "t", "", "Default target language")
	serveCmd.Flags().Bool("refine", false, "Run the refinement pass by default")
	serveCmd.Flags().Bool("dynamic-glossary", false, "Extract terms from each chunk by default")
}
