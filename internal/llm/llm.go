// Package llm defines the model capability the translation pipeline depends
// on, plus HTTP providers for OpenAI-compatible servers and Ollama.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
)

// DefaultMaxSteps bounds the tool-call loop of a text generation.
const DefaultMaxSteps = 5

// Model is a generative language model.
type Model interface {
	// Name identifies the model in events and logs.
	Name() string
	// GenerateText produces free text, calling req.Tools as the model asks.
	GenerateText(ctx context.Context, req TextRequest) (TextResponse, error)
	// GenerateStructured produces a JSON value that should match req.Schema.
	// Callers validate the value; see Structured.
	GenerateStructured(ctx context.Context, req StructuredRequest) (StructuredResponse, error)
}

// TextRequest is a single-turn prompt with optional tools.
type TextRequest struct {
	System string
	User   string
	Tools  []Tool
	// MaxSteps bounds tool-call rounds. Zero means DefaultMaxSteps.
	MaxSteps int
}

// TextResponse carries the final text and the tokens consumed by every
// round of the exchange.
type TextResponse struct {
	Text       string
	TokensUsed int
}

// StructuredRequest asks for a JSON value conforming to Schema.
type StructuredRequest struct {
	System string
	User   string
	// Name labels the schema for providers that require one.
	Name   string
	Schema *jsonschema.Schema
}

// StructuredResponse is the raw JSON reply.
type StructuredResponse struct {
	JSON       json.RawMessage
	TokensUsed int
}

// Tool is a function the model may call while generating text.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Call        func(ctx context.Context, args json.RawMessage) (string, error)
}

// Config describes one configured model endpoint.
type Config struct {
	// Name overrides the model id in events and logs.
	Name    string
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerSecond throttles requests. Zero disables throttling.
	RequestsPerSecond float64
}

func (c Config) displayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Model
}

// Structured generates a value of type T. The schema is inferred from T;
// a reply that is not valid JSON or does not fit T is reported as
// errs.ErrMalformedOutput. See Decode for what fits.
func Structured[T any](ctx context.Context, m Model, system, user, name string) (T, int, error) {
	var zero T
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return zero, 0, fmt.Errorf("failed to infer schema for %s: %w", name, err)
	}
	resp, err := m.GenerateStructured(ctx, StructuredRequest{
		System: system,
		User:   user,
		Name:   name,
		Schema: schema,
	})
	if err != nil {
		return zero, 0, errs.Upstream(ctx, err)
	}
	v, err := Decode[T](schema, resp.JSON)
	return v, resp.TokensUsed, err
}

// Decode validates raw against a relaxed form of schema and unmarshals it
// into T. Unknown keys are ignored and array or object fields may be
// missing or null; scalar fields the schema requires must be present.
func Decode[T any](schema *jsonschema.Schema, raw json.RawMessage) (T, error) {
	var zero T
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return zero, errs.Malformed(err)
	}
	if schema != nil {
		resolved, err := lenient(schema).Resolve(nil)
		if err != nil {
			return zero, fmt.Errorf("failed to resolve schema: %w", err)
		}
		if err := resolved.Validate(instance); err != nil {
			return zero, errs.Malformed(err)
		}
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, errs.Malformed(err)
	}
	return v, nil
}

// ToolFor builds a Tool whose parameters are inferred from P.
func ToolFor[P any](name, description string, call func(ctx context.Context, params P) (string, error)) (Tool, error) {
	schema, err := jsonschema.For[P](nil)
	if err != nil {
		return Tool{}, fmt.Errorf("failed to infer parameters for tool %s: %w", name, err)
	}
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Call: func(ctx context.Context, args json.RawMessage) (string, error) {
			params, err := Decode[P](schema, args)
			if err != nil {
				return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
			}
			return call(ctx, params)
		},
	}, nil
}
