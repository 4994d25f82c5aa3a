package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"chatwidget-backend/internal/models"
)

// AuthStyle selects how the credential is attached to a RapidAPI request.
type AuthStyle int

const (
	// AuthKeyHeader sends X-Rapidapi-Key.
	AuthKeyHeader AuthStyle = iota
	// AuthBearer sends Authorization: Bearer.
	AuthBearer
)

// HTTPOptions configures the hand-rolled HTTP providers.
type HTTPOptions struct {
	URL          string
	Host         string // X-Rapidapi-Host
	Model        string
	SystemPrompt string
	Auth         AuthStyle
	// Client defaults to a client without a timeout; the transport defaults apply.
	Client *http.Client
}

func (o HTTPOptions) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return &http.Client{}
}

// ChatCompletions talks to a chat-completions style endpoint:
// {model, messages} in, {choices:[{message:{role,content}}]} out.
type ChatCompletions struct {
	name string
	opts HTTPOptions
	http *http.Client
}

// NewChatCompletions creates a chat-completions provider.
func NewChatCompletions(name string, opts HTTPOptions) *ChatCompletions {
	return &ChatCompletions{name: name, opts: opts, http: opts.client()}
}

type chatCompletionsRequest struct {
	Model    string           `json:"model"`
	Messages []models.Message `json:"messages"`
}

func (c *ChatCompletions) Name() string { return c.name }

// Send posts the whole conversation and returns the first choice.
func (c *ChatCompletions) Send(ctx context.Context, conversation []models.Message, params Params) (models.Message, error) {
	if err := checkInput(c.name, conversation, params); err != nil {
		return models.Message{}, err
	}

	body, err := postJSON(ctx, c.http, c.name, c.opts, params.Credential, chatCompletionsRequest{
		Model:    c.opts.Model,
		Messages: outgoing(conversation, c.opts.SystemPrompt),
	})
	if err != nil {
		return models.Message{}, err
	}

	reply, ok := extractReply(body, chatReplyPath)
	if !ok {
		return models.Message{}, malformedResponse(c.name, "response has no choices[0].message.content")
	}
	return models.AssistantMessage(reply), nil
}

// postJSON sends payload and returns the body of a 2xx response. Every
// failure comes back as an *Error.
func postJSON(ctx context.Context, client *http.Client, name string, opts HTTPOptions, credential string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch opts.Auth {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+credential)
	default:
		req.Header.Set("X-Rapidapi-Key", credential)
	}
	if opts.Host != "" {
		req.Header.Set("X-Rapidapi-Host", opts.Host)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportFailure(name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportFailure(name, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, providerFailure(name, resp.StatusCode, extractErrorMessage(body))
	}
	return body, nil
}
