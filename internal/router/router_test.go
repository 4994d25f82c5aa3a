package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwidget-backend/internal/conversation"
	"chatwidget-backend/internal/credentials"
	"chatwidget-backend/internal/handlers"
	"chatwidget-backend/internal/middleware"
	"chatwidget-backend/internal/models"
	"chatwidget-backend/internal/provider"
	"chatwidget-backend/internal/services"
	"chatwidget-backend/internal/websocket"
)

type fixedProvider struct{}

func (fixedProvider) Name() string { return "fixed" }

func (fixedProvider) Send(context.Context, []models.Message, provider.Params) (models.Message, error) {
	return models.AssistantMessage("hi"), nil
}

func newTestServer(t *testing.T, submitLimit int) *httptest.Server {
	t.Helper()
	auth := middleware.NewSessionAuth("secret")
	hub := websocket.NewHub(nil, auth)
	chat := services.NewChatService(conversation.NewRegistry("Hello!", nil), fixedProvider{}, credentials.NewMemoryStore(), hub, "", "en")
	limiter := middleware.NewRateLimiter(submitLimit, time.Minute)
	t.Cleanup(limiter.Close)

	srv := httptest.NewServer(New(
		auth,
		handlers.NewSessionHandler(chat, auth),
		handlers.NewChatHandler(chat),
		hub,
		limiter,
		"*",
	))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_ChatFlow(t *testing.T) {
	srv := newTestServer(t, 30)

	resp := call(t, srv, http.MethodPost, "/api/v1/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	var session models.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))

	// no credential yet
	resp = call(t, srv, http.MethodPost, "/api/v1/sessions/me/messages", session.Token, models.SendMessageRequest{Message: "hello"})
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	resp = call(t, srv, http.MethodPut, "/api/v1/sessions/me/credential", session.Token, models.CredentialRequest{APIKey: "key"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = call(t, srv, http.MethodPost, "/api/v1/sessions/me/messages", session.Token, models.SendMessageRequest{Message: "hello"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var state models.SessionState
	require.Eventually(t, func() bool {
		resp := call(t, srv, http.MethodGet, "/api/v1/sessions/me", session.Token, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		state = models.SessionState{}
		return json.NewDecoder(resp.Body).Decode(&state) == nil && !state.Awaiting && len(state.Messages) == 3
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, []models.Message{
		models.AssistantMessage("Hello!"),
		models.UserMessage("hello"),
		models.AssistantMessage("hi"),
	}, state.Messages)
	assert.True(t, state.HasCredential)

	resp = call(t, srv, http.MethodDelete, "/api/v1/sessions/me", session.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = call(t, srv, http.MethodGet, "/api/v1/sessions/me", session.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_SessionRoutesNeedToken(t *testing.T) {
	srv := newTestServer(t, 30)

	for _, path := range []string{"/api/v1/sessions/me", "/api/v1/sessions/me/messages"} {
		method := http.MethodGet
		if path == "/api/v1/sessions/me/messages" {
			method = http.MethodPost
		}
		resp := call(t, srv, method, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestRouter_SubmitRateLimited(t *testing.T) {
	srv := newTestServer(t, 1)

	resp := call(t, srv, http.MethodPost, "/api/v1/sessions", "", nil)
	var session models.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))

	resp = call(t, srv, http.MethodPost, "/api/v1/sessions/me/messages", session.Token, models.SendMessageRequest{Message: " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = call(t, srv, http.MethodPost, "/api/v1/sessions/me/messages", session.Token, models.SendMessageRequest{Message: " "})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRouter_StaticRoutes(t *testing.T) {
	srv := newTestServer(t, 30)

	resp := call(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp = call(t, srv, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cats map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cats))
	assert.Contains(t, cats["categories"], "hadith")
}
