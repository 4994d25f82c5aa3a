package handlers

import (
	"encoding/json"
	"net/http"

	"chatwidget-backend/internal/middleware"
	"chatwidget-backend/internal/models"
	"chatwidget-backend/internal/services"
)

type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Send accepts one user turn. The reply arrives over the websocket; the
// response only acknowledges the appended user message.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	turn, err := h.chat.Submit(r.Context(), middleware.GetSessionID(r.Context()), req.Message, req.Category)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, models.SendMessageResponse{
		Message: turn.Message,
		Version: turn.Version,
	})
}

func (h *ChatHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"categories": models.Categories})
}
