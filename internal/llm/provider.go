package llm

import (
	"fmt"
	"strings"

	"github.com/GrxyScxr1/vertana-sub000/internal/errs"
)

// Provider names accepted by New.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// DefaultOpenRouterBaseURL is the OpenRouter chat completions root.
const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// Providers lists the names New understands.
var Providers = []string{ProviderOpenAI, ProviderOpenRouter, ProviderOllama}

// New builds a model for the named provider.
func New(provider string, cfg Config) (Model, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model id is required", errs.ErrInvalidArgument)
	}
	switch strings.ToLower(provider) {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg), nil
	case ProviderOpenRouter:
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOpenRouterBaseURL
		}
		return NewOpenAI(cfg), nil
	case ProviderOllama:
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (want one of %s)", errs.ErrInvalidArgument, provider, strings.Join(Providers, ", "))
	}
}
