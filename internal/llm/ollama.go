package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/postprocess"
	"github.com/GrxyScxr1/vertana-sub000/internal/tokens"
)

// DefaultOllamaBaseURL is used when Config.BaseURL is empty.
const DefaultOllamaBaseURL = "http://localhost:11434"

// Ollama talks to a local Ollama server through its native /api/chat
// endpoint.
type Ollama struct {
	cfg      Config
	endpoint endpoint
}

// NewOllama returns a model served by Ollama.
func NewOllama(cfg Config) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Ollama{cfg: cfg, endpoint: newEndpoint("ollama", cfg)}
}

func (m *Ollama) Name() string {
	return m.cfg.displayName()
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []openAITool    `json:"tools,omitempty"`
	// Format is "json" or a JSON schema.
	Format any `json:"format,omitempty"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func (m *Ollama) chat(ctx context.Context, req ollamaRequest) (ollamaMessage, int, error) {
	var resp ollamaResponse
	if err := m.endpoint.postJSON(ctx, m.cfg.BaseURL+"/api/chat", nil, req, &resp); err != nil {
		return ollamaMessage{}, 0, err
	}
	used := resp.PromptEvalCount + resp.EvalCount
	if used == 0 {
		for _, msg := range req.Messages {
			used += tokens.Count(msg.Content)
		}
		used += tokens.Count(resp.Message.Content)
	}
	return resp.Message, used, nil
}

func (m *Ollama) GenerateText(ctx context.Context, req TextRequest) (TextResponse, error) {
	body := ollamaRequest{
		Model: m.cfg.Model,
		Messages: []ollamaMessage{
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
			out, err := callTool(ctx, req.Tools, call.Function.Name, call.Function.Arguments)
			if err != nil {
				return TextResponse{}, err
			}
			body.Messages = append(body.Messages, ollamaMessage{Role: "tool", Content: out, ToolName: call.Function.Name})
		}
	}
}

func (m *Ollama) GenerateStructured(ctx context.Context, req StructuredRequest) (StructuredResponse, error) {
	var format any = "json"
	if req.Schema != nil {
		format = req.Schema
	}
	msg, used, err := m.chat(ctx, ollamaRequest{
		Model: m.cfg.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Format: format,
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
