// Package llmtest provides a scriptable llm.Model for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/tokens"
)

// ErrNotScripted is returned by a Fake asked for output it has no script for.
var ErrNotScripted = errors.New("llmtest: no response scripted")

// Fake is an llm.Model whose replies come from TextFunc and StructuredFunc.
// A nil TextFunc echoes the user prompt prefixed with the model name. A nil
// StructuredFunc fails with ErrNotScripted. Fake is safe for concurrent use.
type Fake struct {
	ModelName      string
	TextFunc       func(ctx context.Context, req llm.TextRequest) (llm.TextResponse, error)
	StructuredFunc func(ctx context.Context, req llm.StructuredRequest) (llm.StructuredResponse, error)

	mu         sync.Mutex
	text       []llm.TextRequest
	structured []llm.StructuredRequest
}

var _ llm.Model = (*Fake)(nil)

func (f *Fake) Name() string {
	if f.ModelName == "" {
		return "fake"
	}
	return f.ModelName
}

func (f *Fake) GenerateText(ctx context.Context, req llm.TextRequest) (llm.TextResponse, error) {
	f.mu.Lock()
	f.text = append(f.text, req)
	f.mu.Unlock()

	if err := errs.CheckContext(ctx); err != nil {
		return llm.TextResponse{}, err
	}
	if f.TextFunc != nil {
		return f.TextFunc(ctx, req)
	}
	text := fmt.Sprintf("[%s] %s", f.Name(), req.User)
	return llm.TextResponse{Text: text, TokensUsed: tokens.Count(req.System) + tokens.Count(req.User) + tokens.Count(text)}, nil
}

func (f *Fake) GenerateStructured(ctx context.Context, req llm.StructuredRequest) (llm.StructuredResponse, error) {
	f.mu.Lock()
	f.structured = append(f.structured, req)
	f.mu.Unlock()

	if err := errs.CheckContext(ctx); err != nil {
		return llm.StructuredResponse{}, err
	}
	if f.StructuredFunc != nil {
		return f.StructuredFunc(ctx, req)
	}
	return llm.StructuredResponse{}, fmt.Errorf("%w: %w", errs.ErrUpstream, ErrNotScripted)
}

// TextRequests returns the text requests received so far.
func (f *Fake) TextRequests() []llm.TextRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.TextRequest(nil), f.text...)
}

// StructuredRequests returns the structured requests received so far.
func (f *Fake) StructuredRequests() []llm.StructuredRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.StructuredRequest(nil), f.structured...)
}

// Calls returns the total number of requests received.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.text) + len(f.structured)
}

// Reply returns a TextFunc that always answers text, reporting used tokens.
func Reply(text string, used int) func(context.Context, llm.TextRequest) (llm.TextResponse, error) {
	return func(context.Context, llm.TextRequest) (llm.TextResponse, error) {
		return llm.TextResponse{Text: text, TokensUsed: used}, nil
	}
}

// Replies returns a TextFunc that answers with texts in order, repeating the
// last one once the list is exhausted.
func Replies(used int, texts ...string) func(context.Context, llm.TextRequest) (llm.TextResponse, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, llm.TextRequest) (llm.TextResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		text := texts[min(i, len(texts)-1)]
		i++
		return llm.TextResponse{Text: text, TokensUsed: used}, nil
	}
}

// JSON returns a StructuredFunc that answers with the encoding of each value
// in order, repeating the last one once the list is exhausted.
func JSON(values ...any) func(context.Context, llm.StructuredRequest) (llm.StructuredResponse, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, llm.StructuredRequest) (llm.StructuredResponse, error) {
		mu.Lock()
		v := values[min(i, len(values)-1)]
		i++
		mu.Unlock()
		if raw, ok := v.(string); ok {
			return llm.StructuredResponse{JSON: json.RawMessage(raw), TokensUsed: 1}, nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return llm.StructuredResponse{}, err
		}
		return llm.StructuredResponse{JSON: raw, TokensUsed: 1}, nil
	}
}

// Fail returns a StructuredFunc that always fails with err.
func Fail(err error) func(context.Context, llm.StructuredRequest) (llm.StructuredResponse, error) {
	return func(context.Context, llm.StructuredRequest) (llm.StructuredResponse, error) {
		return llm.StructuredResponse{}, err
	}
}
