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
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GrxyScxr1/vertana-sub000/internal/tokens"
	"github.com/GrxyScxr1/vertana-sub000/internal/translation"
)

var (
	chunkMediaType string
	chunkFull      bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Preview how a document is split into chunks",
	Long: `Print the chunks a document would be translated in, with their type
and estimated token count. Use --max-tokens to try other chunk sizes.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{bindAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}
		chunks, err := translation.Chunk(cmd.Context(), text, translation.Options{
			MediaType: mediaTypeFor(chunkMediaType, args[0]),
			MaxTokens: cfg.MaxTokens,
		})
		if err != nil {
			return err
		}

		if chunkFull {
			for _, ch := range chunks {
				fmt.Printf("--- chunk %d (%s, %d tokens) ---\n%s\n\n", ch.Index, ch.Type, tokens.Count(ch.Content), ch.Content)
			}
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tTYPE\tTOKENS\tTEXT")
		total := 0
		for _, ch := range chunks {
			n := tokens.Count(ch.Content)
			total += n
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", ch.Index, ch.Type, n, truncate(ch.Content, 60))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d chunk(s), %d tokens (limit %d per chunk)\n", len(chunks), total, cfg.MaxTokens)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chunkCmd)

	chunkCmd.Flags().StringVar(&chunkMediaType, "media-type", "", "markdown, html or plain (default from file extension)")
	chunkCmd.Flags().Int("max-tokens", 0, "Chunk size in tokens")
	chunkCmd.Flags().BoolVar(&chunkFull, "full", false, "Print the full text of every chunk")
}
