// Package glossary holds terminology mappings that translations must honor.
package glossary

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
)

// Entry maps a source term to its mandated translation.
type Entry struct {
	Original   string `json:"original" yaml:"original" jsonschema:"the term as it appears in the source text"`
	Translated string `json:"translated" yaml:"translated" jsonschema:"the term as it must appear in the translation"`
	Context    string `json:"context,omitempty" yaml:"context,omitempty" jsonschema:"optional note on when the mapping applies"`
}

// Glossary is an ordered set of entries keyed by Original.
type Glossary []Entry

// Merge combines glossaries left to right. When two entries share an
// Original (case-sensitive) the later one wins; the merged entry keeps the
// position of the first occurrence.
func Merge(gs ...Glossary) Glossary {
	pos := make(map[string]int)
	out := Glossary{}
	for _, g := range gs {
		for _, e := range g {
			if i, ok := pos[e.Original]; ok {
				out[i] = e
				continue
			}
			pos[e.Original] = len(out)
			out = append(out, e)
		}
	}
	return out
}

// Validate reports the first entry with an empty original or translation.
func (g Glossary) Validate() error {
	for i, e := range g {
		if strings.TrimSpace(e.Original) == "" {
			return fmt.Errorf("%w: glossary entry %d has no original term", errs.ErrInvalidArgument, i)
		}
		if strings.TrimSpace(e.Translated) == "" {
			return fmt.Errorf("%w: glossary entry %d (%q) has no translation", errs.ErrInvalidArgument, i, e.Original)
		}
	}
	return nil
}

// ContainsFold reports whether g has an entry whose Original equals original
// under Unicode case folding.
func (g Glossary) ContainsFold(original string) bool {
	for _, e := range g {
		if strings.EqualFold(e.Original, original) {
			return true
		}
	}
	return false
}

// Format renders one line per entry: "original" → "translated" (context).
func (g Glossary) Format() string {
	lines := make([]string, 0, len(g))
	for _, e := range g {
		line := fmt.Sprintf("%q → %q", e.Original, e.Translated)
		if e.Context != "" {
			line += " (" + e.Context + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// file is the on-disk YAML layout.
type file struct {
	Source string   `yaml:"source,omitempty"`
	Target string   `yaml:"target,omitempty"`
	Terms  Glossary `yaml:"terms"`
}

// Document is a glossary together with the language pair it applies to.
type Document struct {
	Source string
	Target string
	Terms  Glossary
}

// Decode reads a YAML glossary document and validates its terms.
func Decode(r io.Reader) (Document, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("failed to decode glossary: %w", err)
	}
	if err := f.Terms.Validate(); err != nil {
		return Document{}, err
	}
	return Document{Source: f.Source, Target: f.Target, Terms: f.Terms}, nil
}

// Encode writes doc as YAML.
func Encode(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	terms := doc.Terms
	if terms == nil {
		terms = Glossary{}
	}
	if err := enc.Encode(file{Source: doc.Source, Target: doc.Target, Terms: terms}); err != nil {
		return fmt.Errorf("failed to encode glossary: %w", err)
	}
	return enc.Close()
}

// LoadFile reads a YAML glossary from path.
func LoadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to open glossary: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// SaveFile writes doc to path as YAML.
func SaveFile(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create glossary file: %w", err)
	}
	if err := Encode(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
