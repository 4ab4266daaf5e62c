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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage the terminology glossary",
	Long: `Add, list, delete, import and export terminology glossary entries.

Glossary entries ensure that specific source terms are always translated
to the same target term. Stored entries for a language pair are loaded
automatically by "vertana translate".`,
}

var (
	glossarySource  string
	glossaryTarget  string
	glossaryContext string
)

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List glossary entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		// Empty languages list everything; flags narrow the filter.
		entries, err := db.ListTerms(context.Background(), glossarySource, glossaryTarget)
		if err != nil {
			return fmt.Errorf("failed to list glossary: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("Glossary is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE LANG\tTARGET LANG\tSOURCE TERM\tTARGET TERM\tCONTEXT")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.SourceLang, e.TargetLang, e.Original, e.Translated, e.Context)
		}
		return w.Flush()
	},
}

var glossaryAddCmd = &cobra.Command{
	Use:   "add <source-term> <target-term>",
	Short: "Add or update a glossary entry",
	Long: `Add a glossary entry mapping a source-language term to a target-language term.

Example:
  vertana glossary add "Kyiv" "Київ" --source en --target uk`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePair(); err != nil {
			return err
		}
		entry := glossary.Entry{Original: args[0], Translated: args[1], Context: glossaryContext}
		if err := (glossary.Glossary{entry}).Validate(); err != nil {
			return err
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.AddTerm(context.Background(), glossarySource, glossaryTarget, entry); err != nil {
			return fmt.Errorf("failed to add glossary entry: %w", err)
		}
		fmt.Printf("Added: [%s→%s] %q → %q\n", glossarySource, glossaryTarget, args[0], args[1])
		return nil
	},
}

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a glossary entry by ID",
	Long:  `Delete a glossary entry by its ID (shown in "vertana glossary list").`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		found, err := db.DeleteTerm(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to delete glossary entry: %w", err)
		}
		if !found {
			return fmt.Errorf("no glossary entry with ID %s", args[0])
		}
		fmt.Printf("Deleted glossary entry: %s\n", args[0])
		return nil
	},
}

var glossaryImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import glossary entries from a YAML file",
	Long: `Import entries from a YAML file of the form:

  source: en
  target: uk
  terms:
    - original: Kyiv
      translated: Київ
      context: city name

--source and --target override the languages in the file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := glossary.LoadFile(args[0])
		if err != nil {
			return err
		}
		if glossarySource == "" {
			glossarySource = doc.Source
		}
		if glossaryTarget == "" {
			glossaryTarget = doc.Target
		}
		if err := requirePair(); err != nil {
			return err
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.AddTerms(context.Background(), glossarySource, glossaryTarget, doc.Terms); err != nil {
			return fmt.Errorf("failed to import glossary: %w", err)
		}
		fmt.Printf("Imported %d entries [%s→%s]\n", len(doc.Terms), glossarySource, glossaryTarget)
		return nil
	},
}

var glossaryExportCmd = &cobra.Command{
	Use:   "export [file.yaml]",
	Short: "Export glossary entries for a language pair as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePair(); err != nil {
			return err
		}
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		terms, err := db.Glossary(context.Background(), glossarySource, glossaryTarget)
		if err != nil {
			return fmt.Errorf("failed to load glossary: %w", err)
		}
		doc := glossary.Document{Source: glossarySource, Target: glossaryTarget, Terms: terms}
		if len(args) == 0 || args[0] == "-" {
			return glossary.Encode(os.Stdout, doc)
		}
		if err := glossary.SaveFile(args[0], doc); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d entries to %s\n", len(terms), args[0])
		return nil
	},
}

func requirePair() error {
	if glossarySource == "" {
		return fmt.Errorf("--source language flag is required")
	}
	if glossaryTarget == "" {
		return fmt.Errorf("--target language flag is required")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryCmd.PersistentFlags().StringVarP(&glossarySource, "source", "s", "", "Source language code (e.g. en)")
	glossaryCmd.PersistentFlags().StringVarP(&glossaryTarget, "target", "t", "", "Target language code (e.g. uk)")
	glossaryAddCmd.Flags().StringVar(&glossaryContext, "context", "", "Note on when the mapping applies")

	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryDeleteCmd)
	glossaryCmd.AddCommand(glossaryImportCmd)
	glossaryCmd.AddCommand(glossaryExportCmd)
}
