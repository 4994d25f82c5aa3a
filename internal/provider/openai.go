package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"chatwidget-backend/internal/models"
)

// OpenAI implements Provider with the official OpenAI Go SDK.
// Any OpenAI-compatible endpoint works through WithBaseURL.
type OpenAI struct {
	client       openai.Client
	model        string
	systemPrompt string
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	model        string
	baseURL      string
	systemPrompt string
}

// WithModel sets the model name (default: "gpt-4o").
func WithModel(model string) OpenAIOption {
	return func(c *openaiConfig) { c.model = model }
}

// WithBaseURL points the SDK at another OpenAI-compatible server.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) { c.baseURL = url }
}

func WithSystemPrompt(prompt string) OpenAIOption {
	return func(c *openaiConfig) { c.systemPrompt = prompt }
}

func NewOpenAI(opts ...OpenAIOption) *OpenAI {
	cfg := openaiConfig{model: "gpt-4o"}
	for _, o := range opts {
		o(&cfg)
	}

	// Failed turns are reported to the user, never retried.
	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &OpenAI{
		client:       openai.NewClient(clientOpts...),
		model:        cfg.model,
		systemPrompt: cfg.systemPrompt,
	}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Send(ctx context.Context, conversation []models.Message, params Params) (models.Message, error) {
	if err := checkInput(p.Name(), conversation, params); err != nil {
		return models.Message{}, err
	}

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: toOpenAIMessages(outgoing(conversation, p.systemPrompt)),
	}, option.WithAPIKey(params.Credential))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			reason := apiErr.Message
			if reason == "" {
				reason = extractErrorMessage([]byte(apiErr.RawJSON()))
			}
			return models.Message{}, providerFailure(p.Name(), apiErr.StatusCode, reason)
		}
		return models.Message{}, transportFailure(p.Name(), err)
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return models.Message{}, malformedResponse(p.Name(), "openai returned no choices")
	}
	return models.AssistantMessage(completion.Choices[0].Message.Content), nil
}

// toOpenAIMessages converts conversation messages to the SDK union type.
func toOpenAIMessages(msgs []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			out[i] = openai.SystemMessage(m.Content)
		case models.RoleAssistant:
			out[i] = openai.AssistantMessage(m.Content)
		default:
			out[i] = openai.UserMessage(m.Content)
		}
	}
	return out
}
