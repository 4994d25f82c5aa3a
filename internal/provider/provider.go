// Package provider implements the completion backends the widget can talk to.
//
// Every backend is reached through Provider.Send, which turns the current
// conversation into exactly one outbound request and returns exactly one
// assistant message or an *Error describing why it could not.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chatwidget-backend/internal/models"
)

// Params carries the per-request values that are not part of the conversation.
type Params struct {
	Credential string
	Category   string
	Language   string
}

// Provider sends a conversation to a completion service.
// Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Send(ctx context.Context, conversation []models.Message, params Params) (models.Message, error)
}

// Kind classifies a failed Send.
type Kind string

const (
	KindMissingCredential Kind = "missing_credential"
	KindEmptyConversation Kind = "empty_conversation"
	KindTransport         Kind = "transport_failure"
	KindProvider          Kind = "provider_error"
	KindMalformed         Kind = "malformed_response"
)

// Error is returned by every Provider on failure.
type Error struct {
	Kind     Kind
	Provider string
	Status   int    // HTTP status for KindProvider, 0 otherwise
	Reason   string // human readable, safe to show to the user
	Err      error
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingCredential = &Error{Kind: KindMissingCredential, Reason: "missing credential"}
	ErrEmptyConversation = &Error{Kind: KindEmptyConversation, Reason: "no messages to send"}
	ErrTransport         = &Error{Kind: KindTransport, Reason: "transport failure"}
	ErrProvider          = &Error{Kind: KindProvider, Reason: "provider error"}
	ErrMalformedResponse = &Error{Kind: KindMalformed, Reason: "malformed response"}
)

// KindOf returns the Kind of err, or "" when err is not a provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// ReasonOf returns the user-facing reason carried by err.
func ReasonOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Reason != "" {
		return pe.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func missingCredential(provider string) *Error {
	return &Error{Kind: KindMissingCredential, Provider: provider, Reason: "API key is required"}
}

func emptyConversation(provider string) *Error {
	return &Error{Kind: KindEmptyConversation, Provider: provider, Reason: "no messages to send"}
}

func transportFailure(provider string, err error) *Error {
	return &Error{Kind: KindTransport, Provider: provider, Reason: err.Error(), Err: err}
}

func providerFailure(provider string, status int, reason string) *Error {
	if reason == "" {
		reason = statusText(status)
	}
	return &Error{Kind: KindProvider, Provider: provider, Status: status, Reason: reason}
}

func malformedResponse(provider, detail string) *Error {
	return &Error{Kind: KindMalformed, Provider: provider, Reason: detail}
}

func statusText(status int) string {
	if t := http.StatusText(status); t != "" {
		return t
	}
	return "API request failed"
}

// checkInput enforces the preconditions shared by all providers.
func checkInput(provider string, conversation []models.Message, params Params) error {
	if strings.TrimSpace(params.Credential) == "" {
		return missingCredential(provider)
	}
	if len(conversation) == 0 {
		return emptyConversation(provider)
	}
	return nil
}

// outgoing trims the conversation to role/content pairs and prepends the
// optional system instruction.
func outgoing(conversation []models.Message, systemPrompt string) []models.Message {
	out := make([]models.Message, 0, len(conversation)+1)
	if systemPrompt != "" {
		out = append(out, models.Message{Role: models.RoleSystem, Content: systemPrompt})
	}
	for _, m := range conversation {
		out = append(out, models.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// lastUserMessage returns the content of the most recent user turn.
func lastUserMessage(conversation []models.Message) (string, bool) {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == models.RoleUser {
			return conversation[i].Content, true
		}
	}
	return "", false
}
