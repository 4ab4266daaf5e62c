package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm"
	"github.com/GrxyScxr1/vertana-sub000/internal/llm/llmtest"
)

type verdict struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues"`
}

func TestStructuredDecodes(t *testing.T) {
	fake := &llmtest.Fake{StructuredFunc: llmtest.JSON(verdict{Score: 0.5, Issues: []string{"x"}})}

	got, used, err := llm.Structured[verdict](context.Background(), fake, "sys", "user", "verdict")
	require.NoError(t, err)
	assert.Equal(t, verdict{Score: 0.5, Issues: []string{"x"}}, got)
	assert.Equal(t, 1, used)

	reqs := fake.StructuredRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "verdict", reqs[0].Name)
	require.NotNil(t, reqs[0].Schema)
	assert.Equal(t, "object", reqs[0].Schema.Type)
	assert.ElementsMatch(t, []string{"score", "issues"}, reqs[0].Schema.Required)
}

func TestStructuredMalformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", `not json`},
		{"missing score", `{"issues": []}`},
		{"wrong type", `{"score": "high", "issues": []}`},
		{"wrong element type", `{"score": 1, "issues": [3]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &llmtest.Fake{StructuredFunc: llmtest.JSON(tt.reply)}
			_, _, err := llm.Structured[verdict](context.Background(), fake, "", "", "verdict")
			assert.ErrorIs(t, err, errs.ErrMalformedOutput)
			assert.ErrorIs(t, err, errs.ErrUpstream)
		})
	}
}

func TestStructuredLenient(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  verdict
	}{
		{"extra keys", `{"score": 0.2, "issues": ["x"], "reasoning": "bad"}`, verdict{Score: 0.2, Issues: []string{"x"}}},
		{"null issues", `{"score": 0.2, "issues": null}`, verdict{Score: 0.2}},
		{"missing issues", `{"score": 0.2}`, verdict{Score: 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &llmtest.Fake{StructuredFunc: llmtest.JSON(tt.reply)}
			got, _, err := llm.Structured[verdict](context.Background(), fake, "", "", "verdict")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStructuredUpstreamFailure(t *testing.T) {
	fake := &llmtest.Fake{StructuredFunc: llmtest.Fail(errors.New("boom"))}
	_, _, err := llm.Structured[verdict](context.Background(), fake, "", "", "verdict")
	assert.ErrorIs(t, err, errs.ErrUpstream)
	assert.NotErrorIs(t, err, errs.ErrMalformedOutput)
}

type lookupParams struct {
	Query string `json:"query" jsonschema:"term to look up"`
}

func TestToolFor(t *testing.T) {
	tool, err := llm.ToolFor("lookup", "Look up a term", func(_ context.Context, p lookupParams) (string, error) {
		return "found " + p.Query, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "term to look up", tool.Parameters.Properties["query"].Description)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"query":"bank"}`))
	require.NoError(t, err)
	assert.Equal(t, "found bank", out)

	_, err = tool.Call(context.Background(), json.RawMessage(`{"q":1}`))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	m, err := llm.New("openai", llm.Config{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", m.Name())

	m, err = llm.New("ollama", llm.Config{Name: "local", Model: "llama3.2"})
	require.NoError(t, err)
	assert.Equal(t, "local", m.Name())

	_, err = llm.New("openrouter", llm.Config{Model: "qwen/qwen2.5-72b-instruct"})
	require.NoError(t, err)

	_, err = llm.New("bogus", llm.Config{Model: "x"})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = llm.New("openai", llm.Config{})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestOpenAIGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body := decodeBody(t, r)
		assert.Equal(t, "gpt-test", body["model"])
		msgs := body["messages"].([]any)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Here is the translation: Hallo"}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	m := llm.NewOpenAI(llm.Config{BaseURL: srv.URL + "/v1/", APIKey: "secret", Model: "gpt-test"})
	resp, err := m.GenerateText(context.Background(), llm.TextRequest{System: "translate", User: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hallo", resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)
}

func TestOpenAIToolLoop(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		switch calls.Add(1) {
		case 1:
			assert.Len(t, body["tools"], 1)
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"lookup","arguments":"{\"query\":\"bank\"}"}}]}}],"usage":{"total_tokens":10}}`))
		default:
			msgs := body["messages"].([]any)
			last := msgs[len(msgs)-1].(map[string]any)
			assert.Equal(t, "tool", last["role"])
			assert.Equal(t, "c1", last["tool_call_id"])
			assert.Equal(t, "Ufer", last["content"])
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Am Ufer"}}],"usage":{"total_tokens":5}}`))
		}
	}))
	defer srv.Close()

	tool, err := llm.ToolFor("lookup", "glossary", func(_ context.Context, p lookupParams) (string, error) {
		assert.Equal(t, "bank", p.Query)
		return "Ufer", nil
	})
	require.NoError(t, err)

	m := llm.NewOpenAI(llm.Config{BaseURL: srv.URL, Model: "m"})
	resp, err := m.GenerateText(context.Background(), llm.TextRequest{User: "At the bank", Tools: []llm.Tool{tool}})
	require.NoError(t, err)
	assert.Equal(t, "Am Ufer", resp.Text)
	assert.Equal(t, 15, resp.TokensUsed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIToolLoopIsBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		calls.Add(1)
		if _, ok := body["tools"]; !ok {
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"final"}}],"usage":{"total_tokens":1}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[{"id":"x","type":"function","function":{"name":"missing","arguments":""}}]}}],"usage":{"total_tokens":1}}`))
	}))
	defer srv.Close()

	tool := llm.Tool{Name: "noop", Call: func(context.Context, json.RawMessage) (string, error) { return "", nil }}
	m := llm.NewOpenAI(llm.Config{BaseURL: srv.URL, Model: "m"})
	resp, err := m.GenerateText(context.Background(), llm.TextRequest{Tools: []llm.Tool{tool}, MaxSteps: 2})
	require.NoError(t, err)
	assert.Equal(t, "final", resp.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := llm.NewOpenAI(llm.Config{BaseURL: srv.URL, Model: "m"})
	_, err := m.GenerateText(context.Background(), llm.TextRequest{User: "x"})
	assert.ErrorIs(t, err, errs.ErrUpstream)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAICancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"x"}}]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := llm.NewOpenAI(llm.Config{BaseURL: srv.URL, Model: "m"})
	_, err := m.GenerateText(ctx, llm.TextRequest{User: "x"})
	assert.ErrorIs(t, err, errs.ErrAborted)
}

func TestOpenAIGenerateStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		format := body["response_format"].(map[string]any)
		assert.Equal(t, "json_schema", format["type"])
		schema := format["json_schema"].(map[string]any)
		assert.Equal(t, "verdict", schema["name"])
		assert.Equal(t, true, schema["strict"])
		w.Write([]byte("{\"choices\":[{\"message\":{\"content\":\"```json\\n{\\\"score\\\":0.75,\\\"issues\\\":[]}\\n```\"}}]}"))
	}))
	defer srv.Close()

	m := llm.NewOpenAI(llm.Config{BaseURL: srv.URL, Model: "m"})
	got, used, err := llm.Structured[verdict](context.Background(), m, "judge", "text", "verdict")
	require.NoError(t, err)
	assert.Equal(t, 0.75, got.Score)
	assert.Greater(t, used, 0)
}

func TestOpenAIStructuredWithoutJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"I cannot do that."}}]}`))
	}))
	defer srv.Close()

	m := llm.NewOpenAI(llm.Config{BaseURL: srv.URL, Model: "m"})
	_, err := m.GenerateStructured(context.Background(), llm.StructuredRequest{})
	assert.ErrorIs(t, err, errs.ErrMalformedOutput)
}

func TestOllamaGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, false, body["stream"])
		w.Write([]byte(`{"message":{"role":"assistant","content":"<think>hmm</think>Bonjour"},"done":true,"prompt_eval_count":7,"eval_count":3}`))
	}))
	defer srv.Close()

	m := llm.NewOllama(llm.Config{BaseURL: srv.URL, Model: "llama3.2"})
	resp, err := m.GenerateText(context.Background(), llm.TextRequest{System: "s", User: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", resp.Text)
	assert.Equal(t, 10, resp.TokensUsed)
}

func TestOllamaToolLoop(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"lookup","arguments":{"query":"bank"}}}]},"done":true,"eval_count":2}`))
			return
		}
		msgs := body["messages"].([]any)
		last := msgs[len(msgs)-1].(map[string]any)
		assert.Equal(t, "tool", last["role"])
		assert.Equal(t, "lookup", last["tool_name"])
		w.Write([]byte(`{"message":{"role":"assistant","content":"Ufer"},"done":true,"eval_count":2}`))
	}))
	defer srv.Close()

	tool, err := llm.ToolFor("lookup", "", func(_ context.Context, p lookupParams) (string, error) {
		return p.Query + "=Ufer", nil
	})
	require.NoError(t, err)

	m := llm.NewOllama(llm.Config{BaseURL: srv.URL, Model: "m"})
	resp, err := m.GenerateText(context.Background(), llm.TextRequest{User: "bank", Tools: []llm.Tool{tool}})
	require.NoError(t, err)
	assert.Equal(t, "Ufer", resp.Text)
	assert.Equal(t, 4, resp.TokensUsed)
}

func TestOllamaGenerateStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		format, ok := body["format"].(map[string]any)
		require.True(t, ok, "format should carry the schema")
		assert.Equal(t, "object", format["type"])
		w.Write([]byte(`{"message":{"content":"{\"score\":1,\"issues\":[\"a\"]}"},"done":true}`))
	}))
	defer srv.Close()

	m := llm.NewOllama(llm.Config{BaseURL: srv.URL, Model: "m"})
	got, used, err := llm.Structured[verdict](context.Background(), m, "", "x", "verdict")
	require.NoError(t, err)
	assert.Equal(t, verdict{Score: 1, Issues: []string{"a"}}, got)
	assert.Greater(t, used, 0)
}

func TestDecodeLeavesSchemaUntouched(t *testing.T) {
	fake := &llmtest.Fake{StructuredFunc: llmtest.JSON(`{"score": 1}`)}
	_, _, err := llm.Structured[verdict](context.Background(), fake, "", "", "verdict")
	require.NoError(t, err)

	schema := fake.StructuredRequests()[0].Schema
	assert.ElementsMatch(t, []string{"score", "issues"}, schema.Required)
	assert.NotNil(t, schema.AdditionalProperties)
}
