package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	h := Handler()

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/", "text/html", "Enter RapidAPI Key"},
		{"/app.js", "javascript", "rapidApiKey"},
		{"/style.css", "text/css", ".bubble"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Header().Get("Content-Type"), tc.contentType)
			assert.Contains(t, rr.Body.String(), tc.contains)
		})
	}
}

func TestAppScript_Recovery(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	script := rr.Body.String()

	tests := []struct {
		name string
		want string
	}{
		{"resync when the socket opens", "ws.onopen = refresh"},
		{"snapshot replaces local messages", "state.messages = res.body.messages.slice()"},
		{"gap triggers resync", "version > state.messages.length + 1"},
		{"ended session is reopened", "res.status === 401 || res.status === 404"},
		{"stored key restored quietly", "saveKey(stored, true)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, script, tc.want)
		})
	}
}
