package provider

import (
	"fmt"
	"strings"

	"chatwidget-backend/internal/config"
)

// New returns the Provider selected by cfg.Provider.
func New(cfg *config.Config) (Provider, error) {
	httpOpts := HTTPOptions{
		URL:          cfg.ProviderURL,
		Host:         cfg.ProviderHost,
		Model:        cfg.ProviderModel,
		SystemPrompt: cfg.SystemPrompt,
	}

	switch cfg.Provider {
	case config.ProviderRapidAPI:
		httpOpts.Auth = AuthKeyHeader
		return NewChatCompletions(cfg.Provider, httpOpts), nil
	case config.ProviderRapidAPIBearer:
		httpOpts.Auth = AuthBearer
		return NewChatCompletions(cfg.Provider, httpOpts), nil
	case config.ProviderDomain:
		httpOpts.Auth = AuthKeyHeader
		return NewDomain(cfg.Provider, httpOpts, cfg.Language), nil
	case config.ProviderOpenAI:
		opts := []OpenAIOption{WithModel(cfg.ProviderModel), WithSystemPrompt(cfg.SystemPrompt)}
		if cfg.ProviderURL != "" {
			opts = append(opts, WithBaseURL(strings.TrimSuffix(cfg.ProviderURL, "/chat/completions")))
		}
		return NewOpenAI(opts...), nil
	case config.ProviderGemini:
		return NewGemini(cfg.ProviderModel, cfg.SystemPrompt), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %q", cfg.Provider)
	}
}
