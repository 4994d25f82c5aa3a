package handlers

import (
	"encoding/json"
	"net/http"

	"chatwidget-backend/internal/middleware"
	"chatwidget-backend/internal/models"
	"chatwidget-backend/internal/services"
)

type SessionHandler struct {
	chat *services.ChatService
	auth *middleware.SessionAuth
}

func NewSessionHandler(chat *services.ChatService, auth *middleware.SessionAuth) *SessionHandler {
	return &SessionHandler{chat: chat, auth: auth}
}

// Create opens a new view: a fresh conversation seeded with the greeting.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := h.chat.OpenSession()

	token, err := h.auth.IssueToken(sess.ID)
	if err != nil {
		h.chat.CloseSession(sess.ID)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.SessionResponse{
		SessionID: sess.ID,
		Token:     token,
		Messages:  sess.Conversation.All(),
		Version:   sess.Conversation.Version(),
	})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.chat.State(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Delete discards the conversation and the session credential.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.CloseSession(middleware.GetSessionID(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) PutCredential(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	id := middleware.GetSessionID(r.Context())
	save := h.chat.SaveCredential
	if req.Silent {
		save = h.chat.RestoreCredential
	}
	if err := save(r.Context(), id, req.APIKey); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "API key saved"})
}
