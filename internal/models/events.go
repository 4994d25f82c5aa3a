package models

// Event types pushed to the widget over the websocket.
const (
	EventMessageAppended    = "message_appended"
	EventAwaitingChanged    = "awaiting_changed"
	EventNotification       = "notification"
	EventCredentialRequired = "credential_required"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type MessageAppended struct {
	Message Message `json:"message"`
	Version uint64  `json:"version"`
}

type AwaitingChanged struct {
	Awaiting bool `json:"awaiting"`
}

// Notification is a transient toast shown next to the conversation.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"` // "default" | "destructive"
}

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
