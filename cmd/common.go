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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/GrxyScxr1/vertana-sub000/internal/chunker"
	"github.com/GrxyScxr1/vertana-sub000/internal/detector"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/markdown"
	"github.com/GrxyScxr1/vertana-sub000/internal/store"
)

var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Width(16)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#45475A")).
			Padding(0, 1)
)

type row struct {
	label string
	value string
}

// summary renders labelled rows in a bordered box.
func summary(title string, rows []row) string {
	lines := []string{successStyle.Render(title)}
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		lines = append(lines, labelStyle.Render(r.label)+valueStyle.Render(r.value))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// buildModels applies --model overrides and constructs the models.
func buildModels(specs []string) ([]llm.Model, llm.Model, error) {
	if err := cfg.UseModels(specs); err != nil {
		return nil, nil, err
	}
	return cfg.BuildModels()
}

// openStore opens the configured database, creating its directory.
func openStore() (*store.Store, error) {
	if dir := filepath.Dir(cfg.Database); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// readInput reads path, or standard input when path is "-".
func readInput(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}
	return string(data), nil
}

// writeOutput writes text to path, or to standard output when path is empty
// or "-".
func writeOutput(path, text string) error {
	if path == "" || path == "-" {
		_, err := fmt.Fprintln(os.Stdout, text)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// mediaTypeFor resolves the media type from the flag, else the file
// extension, else Markdown.
func mediaTypeFor(flag, path string) string {
	if flag != "" {
		return chunker.NormalizeMediaType(flag)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return chunker.MediaTypeHTML
	case ".txt", ".text":
		return chunker.MediaTypePlain
	default:
		return chunker.MediaTypeMarkdown
	}
}

// plainText strips markup so language detection sees prose only.
func plainText(text, mediaType string) string {
	switch mediaType {
	case chunker.MediaTypeHTML:
		return markdown.StripHTMLTags(text)
	case chunker.MediaTypePlain:
		return text
	default:
		return markdown.ToPlainText([]byte(text))
	}
}

// resolveSource returns the source language tag, detecting it when lang is
// "auto". An undetectable language yields "".
func resolveSource(lang, text, mediaType string) string {
	if lang != "auto" {
		return lang
	}
	tag, ok := detector.Shared().DetectTag(plainText(text, mediaType))
	if !ok {
		fmt.Fprintln(os.Stderr, warnStyle.Render("Could not detect the source language; leaving it unspecified"))
		return ""
	}
	fmt.Fprintf(os.Stderr, "Detected source language: %s\n", tag)
	return tag
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
