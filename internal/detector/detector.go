// Package detector identifies the language of documents and translations.
package detector

import (
	"strings"
	"sync"

	lingua "github.com/pemistahl/lingua-go"
)

// Detection is an identified language.
type Detection struct {
	// Tag is the lowercase ISO 639-1 code, usable as a BCP 47 tag.
	Tag        string
	Language   string
	Confidence float64
}

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector for every language lingua knows. Building loads
// large models; reuse the instance or call Shared.
func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &Detector{detector: detector}
}

// Shared returns a process-wide detector built on first use.
var Shared = sync.OnceValue(New)

// Detect returns the most likely language of text. It reports false for
// blank text or when no language stands out.
func (d *Detector) Detect(text string) (Detection, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Detection{}, false
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return Detection{}, false
	}
	return Detection{
		Tag:        strings.ToLower(lang.IsoCode639_1().String()),
		Language:   lang.String(),
		Confidence: d.detector.ComputeLanguageConfidence(text, lang),
	}, true
}

// DetectTag returns only the language tag of Detect.
func (d *Detector) DetectTag(text string) (string, bool) {
	det, ok := d.Detect(text)
	return det.Tag, ok
}
