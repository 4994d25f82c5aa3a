package models

import (
	"strings"

	"github.com/google/uuid"
)

// Role identifies the speaker of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Categories offered by the widget's topic selector, in display order.
var Categories = []string{"hadith", "quran", "fiqh", "fatwa", "halal-haram"}

// NormalizeCategory lower-cases c and reports whether it is empty or one of Categories.
func NormalizeCategory(c string) (string, bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" {
		return "", true
	}
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return c, false
}

// SendMessageRequest is the payload sent to the submit endpoint.
type SendMessageRequest struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

// SendMessageResponse acknowledges an accepted submission.
type SendMessageResponse struct {
	Message Message `json:"message"`
	Version uint64  `json:"version"`
}

type CredentialRequest struct {
	APIKey string `json:"api_key"`
	// Silent restores a previously saved key without a confirmation.
	Silent bool `json:"silent"`
}

// SessionResponse is returned when a widget view opens a session.
type SessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Token     string    `json:"token"`
	Messages  []Message `json:"messages"`
	Version   uint64    `json:"version"`
}

// SessionState is the renderable state of a session.
type SessionState struct {
	SessionID     uuid.UUID `json:"session_id"`
	Messages      []Message `json:"messages"`
	Version       uint64    `json:"version"`
	Awaiting      bool      `json:"awaiting"`
	Category      string    `json:"category"`
	HasCredential bool      `json:"has_credential"`
}
