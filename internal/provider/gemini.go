package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"chatwidget-backend/internal/models"
)

// Gemini implements Provider on top of the Gemini chat API. The credential
// arrives per request, so a client is opened for each Send.
type Gemini struct {
	model        string
	systemPrompt string
}

func NewGemini(model, systemPrompt string) *Gemini {
	return &Gemini{model: model, systemPrompt: systemPrompt}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Send(ctx context.Context, conversation []models.Message, params Params) (models.Message, error) {
	if err := checkInput(g.Name(), conversation, params); err != nil {
		return models.Message{}, err
	}
	history, question, ok := toGeminiHistory(conversation)
	if !ok {
		return models.Message{}, emptyConversation(g.Name())
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(params.Credential))
	if err != nil {
		return models.Message{}, transportFailure(g.Name(), fmt.Errorf("create Gemini client: %w", err))
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	if g.systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(g.systemPrompt)}}
	}

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(question))
	if err != nil {
		return models.Message{}, g.classify(err)
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return models.Message{}, malformedResponse(g.Name(), "gemini returned no text")
	}
	return models.AssistantMessage(text), nil
}

func (g *Gemini) classify(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return malformedResponse(g.Name(), blocked.Error())
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return providerFailure(g.Name(), apiErr.Code, apiErr.Message)
	}
	return transportFailure(g.Name(), err)
}

// toGeminiHistory splits the conversation into prior turns and the final
// user question. Gemini histories must open with a user turn, so leading
// assistant messages (the greeting) are dropped.
func toGeminiHistory(conversation []models.Message) ([]*genai.Content, string, bool) {
	if len(conversation) == 0 || conversation[len(conversation)-1].Role != models.RoleUser {
		return nil, "", false
	}
	question := conversation[len(conversation)-1].Content

	var history []*genai.Content
	for _, m := range conversation[:len(conversation)-1] {
		var role string
		switch m.Role {
		case models.RoleUser:
			role = "user"
		case models.RoleAssistant:
			role = "model"
		default:
			continue
		}
		if len(history) == 0 && role != "user" {
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return history, question, true
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
