package provider

import (
	"context"
	"net/http"

	"chatwidget-backend/internal/models"
)

// Domain talks to a topic-aware question endpoint:
// {message, category, language} in, {result:{response:{message}}} out.
// Only the latest user turn is sent; the endpoint keeps no history.
type Domain struct {
	name     string
	opts     HTTPOptions
	language string
	http     *http.Client
}

type domainRequest struct {
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
	Language string `json:"language"`
}

// NewDomain creates a domain provider. language is used when Params.Language is empty.
func NewDomain(name string, opts HTTPOptions, language string) *Domain {
	return &Domain{name: name, opts: opts, language: language, http: opts.client()}
}

func (d *Domain) Name() string { return d.name }

func (d *Domain) Send(ctx context.Context, conversation []models.Message, params Params) (models.Message, error) {
	if err := checkInput(d.name, conversation, params); err != nil {
		return models.Message{}, err
	}
	question, ok := lastUserMessage(conversation)
	if !ok {
		return models.Message{}, emptyConversation(d.name)
	}

	language := params.Language
	if language == "" {
		language = d.language
	}

	body, err := postJSON(ctx, d.http, d.name, d.opts, params.Credential, domainRequest{
		Message:  question,
		Category: params.Category,
		Language: language,
	})
	if err != nil {
		return models.Message{}, err
	}

	reply, ok := extractReply(body, domainReplyPath)
	if !ok {
		return models.Message{}, malformedResponse(d.name, "response has no result.response.message")
	}
	return models.AssistantMessage(reply), nil
}
