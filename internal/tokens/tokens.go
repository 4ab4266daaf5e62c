// Package tokens estimates how many model tokens a string occupies.
//
// The estimate walks Unicode word boundaries: every punctuation mark counts
// as one token, Latin-script words cost roughly one token per four bytes and
// ideographic or syllabic scripts cost one token per character. It is not a
// tokenizer; it only needs to be stable and slightly pessimistic so chunks
// stay under a model's budget.
package tokens

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Counter reports the model-visible length of a string.
type Counter func(text string) int

const bytesPerToken = 4

// Count is the default Counter.
func Count(text string) int {
	total := 0
	state := -1
	var word string
	for len(text) > 0 {
		word, text, state = uniseg.FirstWordInString(text, state)
		total += wordTokens(word)
	}
	return total
}

// OrDefault returns c, or Count when c is nil.
func OrDefault(c Counter) Counter {
	if c == nil {
		return Count
	}
	return c
}

func wordTokens(word string) int {
	if strings.TrimSpace(word) == "" {
		return 0
	}
	dense := 0
	for _, r := range word {
		if isDense(r) {
			dense++
		}
	}
	if dense > 0 {
		return dense + sparseTokens(utf8.RuneCountInString(word)-dense)
	}
	n := (len(word) + bytesPerToken - 1) / bytesPerToken
	return max(n, 1)
}

func sparseTokens(runes int) int {
	if runes <= 0 {
		return 0
	}
	return (runes + bytesPerToken - 1) / bytesPerToken
}

// isDense reports scripts where a single character is usually a token.
func isDense(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Thai)
}
