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
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GrxyScxr1/vertana-sub000/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the translation memory cache",
	Long:  `List, show, invalidate and clear the SQLite translation memory cache.`,
}

var (
	cacheSource string
	cacheTarget string
	cacheAll    bool
	cacheLimit  int
)

// memoryEntries loads the entries matching the --source/--target/--all
// filters, most recently used first.
func memoryEntries(ctx context.Context, db *store.Store) ([]store.MemoryEntry, error) {
	entries, err := db.ListMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return slices.DeleteFunc(entries, func(e store.MemoryEntry) bool {
		return (!cacheAll && e.Invalidated) ||
			(cacheSource != "" && !strings.EqualFold(e.SourceLang, cacheSource)) ||
			(cacheTarget != "" && !strings.EqualFold(e.TargetLang, cacheTarget))
	}), nil
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remembered translations",
	Long: `List remembered translations, most recently used first.

Invalidated entries are hidden unless --all is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := memoryEntries(context.Background(), db)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No matching entries in translation memory.")
			return nil
		}
		shown := entries
		if cacheLimit > 0 && len(shown) > cacheLimit {
			shown = shown[:cacheLimit]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPAIR\tMODEL\tHITS\tLAST USED\tORIGINAL\tTRANSLATION")
		for _, e := range shown {
			id := e.ID
			if e.Invalidated {
				id += "*"
			}
			fmt.Fprintf(w, "%s\t%s→%s\t%s\t%d\t%s\t%s\t%s\n",
				id, e.SourceLang, e.TargetLang, orDash(e.ModelUsed), e.UsageCount,
				e.LastUsed.Local().Format("2006-01-02 15:04"),
				truncate(e.SourceText, 32), truncate(e.FinalText, 32))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if len(shown) < len(entries) {
			fmt.Printf("\n%d of %d entries shown; use --limit 0 for all.\n", len(shown), len(entries))
		}
		if cacheAll {
			fmt.Println("* invalidated, not served")
		}
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one remembered translation in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListMemory(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}
		i := slices.IndexFunc(entries, func(e store.MemoryEntry) bool { return e.ID == args[0] })
		if i < 0 {
			return fmt.Errorf("no translation memory entry with ID %s", args[0])
		}
		e := entries[i]
		status := "active"
		if e.Invalidated {
			status = "invalidated"
		}
		fmt.Println(summary("Entry "+e.ID, []row{
			{"Languages", e.SourceLang + " → " + e.TargetLang},
			{"Model", e.ModelUsed},
			{"Hits", fmt.Sprint(e.UsageCount)},
			{"Last used", e.LastUsed.Local().Format(time.DateTime)},
			{"Status", status},
		}))
		fmt.Printf("\n%s\n\n%s\n", labelStyle.Render("Original"), e.SourceText)
		fmt.Printf("\n%s\n\n%s\n", labelStyle.Render("Translation"), e.FinalText)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show translation memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		stats, err := db.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		entries, err := db.ListMemory(ctx)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		pairs := map[string]int{}
		for _, e := range entries {
			if !e.Invalidated {
				pairs[e.SourceLang+" → "+e.TargetLang]++
			}
		}
		rows := []row{
			{"Entries", fmt.Sprintf("%d (%d active, %d invalidated)", stats.TotalEntries, stats.ActiveEntries, stats.InvalidEntries)},
			{"Hits", fmt.Sprint(stats.TotalUsage)},
		}
		for _, pair := range slices.Sorted(maps.Keys(pairs)) {
			rows = append(rows, row{pair, fmt.Sprint(pairs[pair])})
		}
		fmt.Println(summary("Translation memory", rows))
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <id>",
	Short: "Stop serving an entry without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.InvalidateMemory(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to invalidate entry: %w", err)
		}
		fmt.Printf("Invalidated entry: %s\n", args[0])
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a translation memory entry by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		found, err := db.DeleteMemory(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		if !found {
			return fmt.Errorf("no translation memory entry with ID %s", args[0])
		}
		fmt.Printf("Deleted entry: %s\n", args[0])
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all entries from translation memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearMemory(context.Background())
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Printf("Cleared %d entries from translation memory.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheListCmd.Flags().StringVarP(&cacheSource, "source", "s", "", "Only entries from this source language")
	cacheListCmd.Flags().StringVarP(&cacheTarget, "target", "t", "", "Only entries into this target language")
	cacheListCmd.Flags().BoolVar(&cacheAll, "all", false, "Include invalidated entries")
	cacheListCmd.Flags().IntVarP(&cacheLimit, "limit", "n", 50, "Maximum entries to show (0 for all)")
}
