// Package postprocess strips model artifacts from generated text before it
// is used as a translation or decoded as JSON.
package postprocess

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/GrxyScxr1/vertana-sub000/internal/prompt"
)

// Clean removes artifacts that never belong in a reply: reasoning blocks
// (including one cut off before its closing tag) and a conversational
// preamble such as "Here is the translation:".
func Clean(text string) string {
	text = stripReasoning(text)
	text = stripPreamble(text)
	return strings.TrimSpace(text)
}

// Translation cleans a translated chunk. Wrappers the model put around the
// whole reply (the prompt's text markers, a code fence, a pair of quotes)
// are removed unless source was wrapped the same way.
func Translation(source, text string) string {
	text = Clean(text)
	text = stripMarkers(text)
	if !isFenced(source) {
		text = unwrapFence(text)
	}
	if !isQuoted(strings.TrimSpace(source)) {
		text = unwrapQuotes(text)
	}
	return strings.TrimSpace(text)
}

var reasoningTags = []string{"thinking", "think", "reasoning", "reflection"}

// RE2 has no backreferences, so each tag gets its own alternative.
var closedReasoningRe, openReasoningRe = reasoningPatterns(reasoningTags)

func reasoningPatterns(tags []string) (*regexp.Regexp, *regexp.Regexp) {
	closed := make([]string, len(tags))
	open := make([]string, len(tags))
	for i, tag := range tags {
		closed[i] = "<" + tag + ">.*?</" + tag + ">"
		open[i] = "<" + tag + ">"
	}
	return regexp.MustCompile(`(?is)` + strings.Join(closed, "|")),
		regexp.MustCompile(`(?is)(?:` + strings.Join(open, "|") + `).*$`)
}

func stripReasoning(text string) string {
	text = closedReasoningRe.ReplaceAllString(text, "")
	text = openReasoningRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// preambleRes are anchored at the start and require a colon, so ordinary
// sentences that mention a translation are left alone.
var preambleRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:(?:certainly|sure|of course|okay)[,.!]?\s+)?here(?:'s| is)\s+(?:the\s+|your\s+)?(?:refined\s+|polished\s+|improved\s+|revised\s+|translated\s+)?(?:translation|text)\s*:`),
	regexp.MustCompile(`(?i)^(?:the\s+)?(?:refined\s+|polished\s+|improved\s+|revised\s+)?(?:translation|translated text)\s*:`),
}

func stripPreamble(text string) string {
	for _, re := range preambleRes {
		if loc := re.FindStringIndex(text); loc != nil {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

func stripMarkers(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, prompt.TextBegin)
	text = strings.TrimSuffix(text, prompt.TextEnd)
	return strings.TrimSpace(text)
}

// wholeFenceRe matches a reply that is entirely one fenced block.
var wholeFenceRe = regexp.MustCompile("(?s)^```[\\w-]*[ \\t]*\\n(.*?)\\n?```$")

func isFenced(text string) bool {
	return wholeFenceRe.MatchString(strings.TrimSpace(text))
}

func unwrapFence(text string) string {
	if m := wholeFenceRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return m[1]
	}
	return text
}

var quotePairs = map[rune]rune{
	'"':      '"',
	'\'':     '\'',
	'\u00AB': '\u00BB', // « »
	'\u201C': '\u201D', // “ ”
	'\u2018': '\u2019', // ‘ ’
	'\u201E': '\u201C', // „ “
	'\u300C': '\u300D', // 「 」
}

func isQuoted(text string) bool {
	runes := []rune(text)
	if len(runes) < 2 {
		return false
	}
	closing, ok := quotePairs[runes[0]]
	return ok && runes[len(runes)-1] == closing
}

func unwrapQuotes(text string) string {
	if !isQuoted(text) {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[1 : len(runes)-1]))
}

// ErrNoJSON is returned by ExtractJSON when a reply holds no JSON value.
var ErrNoJSON = errors.New("no JSON value in reply")

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON returns the JSON value embedded in a model reply. It accepts a
// bare value, a value inside a code fence, or a value surrounded by prose,
// in which case the first complete object or array is returned.
func ExtractJSON(text string) (json.RawMessage, error) {
	text = Clean(text)
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}
	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoJSON, err)
	}
	return raw, nil
}
