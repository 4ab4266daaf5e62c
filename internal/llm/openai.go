package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/postprocess"
	"github.com/GrxyScxr1/vertana-sub000/internal/tokens"
)

// DefaultOpenAIBaseURL is used when Config.BaseURL is empty.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI talks to any server implementing the chat completions API
// (OpenAI, OpenRouter, Groq, vLLM, llama.cpp).
type OpenAI struct {
	cfg      Config
	endpoint endpoint
}

// NewOpenAI returns a model backed by cfg.BaseURL + "/chat/completions".
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAI{cfg: cfg, endpoint: newEndpoint("openai", cfg)}
}

func (m *OpenAI) Name() string {
	return m.cfg.displayName()
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
		// Arguments is a JSON document encoded as a string.
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type openAIResponseFormat struct {
	Type       string `json:"type"`
	JSONSchema struct {
		Name   string             `json:"name"`
		Strict bool               `json:"strict,omitempty"`
		Schema *jsonschema.Schema `json:"schema"`
	} `json:"json_schema"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Tools          []openAITool          `json:"tools,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (r openAIResponse) tokens(req openAIRequest) int {
	if r.Usage.TotalTokens > 0 {
		return r.Usage.TotalTokens
	}
	if n := r.Usage.PromptTokens + r.Usage.CompletionTokens; n > 0 {
		return n
	}
	// Some local servers omit usage; estimate instead.
	n := 0
	for _, msg := range req.Messages {
		n += tokens.Count(msg.Content)
	}
	if len(r.Choices) > 0 {
		n += tokens.Count(r.Choices[0].Message.Content)
	}
	return n
}

func (m *OpenAI) chat(ctx context.Context, req openAIRequest) (openAIMessage, int, error) {
	header := http.Header{}
	if m.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}
	var resp openAIResponse
	if err := m.endpoint.postJSON(ctx, m.cfg.BaseURL+"/chat/completions", header, req, &resp); err != nil {
		return openAIMessage{}, 0, err
	}
	if len(resp.Choices) == 0 {
		return openAIMessage{}, 0, fmt.Errorf("%w: openai returned no choices", errs.ErrUpstream)
	}
	return resp.Choices[0].Message, resp.tokens(req), nil
}

func (m *OpenAI) GenerateText(ctx context.Context, req TextRequest) (TextResponse, error) {
	body := openAIRequest{
		Model: m.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, openAITool{
			Type:     "function",
			Function: openAIFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	total := 0
	for step := 0; ; step++ {
		if step == maxSteps(req.MaxSteps) {
			// Out of tool rounds: ask for a final answer without tools.
			body.Tools = nil
		}
		msg, used, err := m.chat(ctx, body)
		if err != nil {
			return TextResponse{}, err
		}
		total += used
		if len(msg.ToolCalls) == 0 || len(body.Tools) == 0 {
			return TextResponse{Text: postprocess.Clean(msg.Content), TokensUsed: total}, nil
		}

		body.Messages = append(body.Messages, msg)
		for _, call := range msg.ToolCalls {
			out, err := callTool(ctx, req.Tools, call.Function.Name, json.RawMessage(call.Function.Arguments))
			if err != nil {
				return TextResponse{}, err
			}
			body.Messages = append(body.Messages, openAIMessage{Role: "tool", Content: out, ToolCallID: call.ID})
		}
	}
}

func (m *OpenAI) GenerateStructured(ctx context.Context, req StructuredRequest) (StructuredResponse, error) {
	format := &openAIResponseFormat{Type: "json_schema"}
	format.JSONSchema.Name = req.Name
	if format.JSONSchema.Name == "" {
		format.JSONSchema.Name = "response"
	}
	format.JSONSchema.Schema = req.Schema
	if schema, ok := strict(req.Schema); ok {
		format.JSONSchema.Schema = schema
		format.JSONSchema.Strict = true
	}

	msg, used, err := m.chat(ctx, openAIRequest{
		Model: m.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		ResponseFormat: format,
	})
	if err != nil {
		return StructuredResponse{}, err
	}
	raw, err := postprocess.ExtractJSON(msg.Content)
	if err != nil {
		return StructuredResponse{}, errs.Malformed(err)
	}
	return StructuredResponse{JSON: raw, TokensUsed: used}, nil
}
