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
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past translation runs",
	Long: `Without arguments, list recent translation runs. With a run ID, show the
run's per-chunk scores and selected models.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		ctx := context.Background()

		if len(args) == 1 {
			run, err := db.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(summary("Run "+run.ID, []row{
				{"Languages", run.SourceLang + " → " + run.TargetLang},
				{"Title", run.Title},
				{"Created", run.CreatedAt.Format(time.DateTime)},
				{"Tokens", strconv.Itoa(run.TokensUsed)},
				{"Time", run.Duration.Round(time.Millisecond).String()},
				{"Quality", score(run.QualityScore)},
				{"Best model", run.WinningModel},
			}))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHUNK\tTOKENS\tSCORE\tMODEL\tTEXT")
			for _, ch := range run.Chunks {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
					ch.Index, ch.TokensUsed, score(ch.QualityScore), ch.SelectedModel, truncate(ch.TranslatedText, 50))
			}
			return w.Flush()
		}

		runs, err := db.ListRuns(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No translation runs recorded.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tLANGS\tTOKENS\tSCORE\tMODEL\tTITLE")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s→%s\t%d\t%s\t%s\t%s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.SourceLang, r.TargetLang,
				r.TokensUsed, score(r.QualityScore), r.WinningModel, truncate(r.Title, 30))
		}
		return w.Flush()
	},
}

func score(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *s)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
}
