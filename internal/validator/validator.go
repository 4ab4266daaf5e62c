// Package validator checks that a translation is in the expected target language.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/GrxyScxr1/vertana-sub000/internal/detector"
)

// minValidationLength is the minimum rune count required to attempt language detection.
// Shorter texts produce unreliable results and are accepted without validation.
const minValidationLength = 20

// ErrLanguageMismatch is returned when the translation is detected in
// another language than the target.
var ErrLanguageMismatch = errors.New("translation is not in the target language")

// ErrEmpty is returned for a blank translation.
var ErrEmpty = errors.New("translation is empty")

// Validator checks that a translation is written in the target language.
type Validator struct {
	det *detector.Detector
}

// New returns a Validator using det, or the shared detector when det is nil.
func New(det *detector.Detector) *Validator {
	if det == nil {
		det = detector.Shared()
	}
	return &Validator{det: det}
}

// Check returns nil when translated appears to be written in target, a BCP
// 47 tag such as "uk" or "pt-BR". Short texts, texts whose language cannot
// be determined and an empty target pass. Markup should be stripped first.
func (v *Validator) Check(translated, target string) error {
	if target == "" {
		return nil
	}

	text := strings.TrimSpace(translated)
	if text == "" {
		return ErrEmpty
	}
	if len([]rune(text)) < minValidationLength {
		return nil
	}

	detected, ok := v.det.DetectTag(text)
	if !ok {
		return nil
	}

	want := baseLanguage(target)
	if !strings.EqualFold(detected, want) {
		return fmt.Errorf("%w: expected %s but detected %s", ErrLanguageMismatch, want, detected)
	}
	return nil
}

func baseLanguage(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}
	base, _ := t.Base()
	return base.String()
}
