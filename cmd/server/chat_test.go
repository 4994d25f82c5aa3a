package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwidget-backend/internal/config"
	"chatwidget-backend/internal/credentials"
	"chatwidget-backend/internal/models"
	"chatwidget-backend/internal/provider"
)

type scriptedProvider struct {
	mu     sync.Mutex
	params []provider.Params
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Send(_ context.Context, conv []models.Message, params provider.Params) (models.Message, error) {
	p.mu.Lock()
	p.params = append(p.params, params)
	p.mu.Unlock()
	return models.AssistantMessage("you said " + conv[len(conv)-1].Content), nil
}

func newTestTerminal(input string, store credentials.Store) (*terminal, *bytes.Buffer, *scriptedProvider) {
	color.NoColor = true
	out := &bytes.Buffer{}
	p := &scriptedProvider{}
	cfg := &config.Config{Greeting: "Hello!", Language: "en"}
	return newTerminal(strings.NewReader(input), out, p, store, cfg), out, p
}

func TestTerminal_PromptsForKeyThenChats(t *testing.T) {
	store := credentials.SingleSlot(credentials.NewMemoryStore(), credentials.LocalStorageKey)
	tm, out, p := newTestTerminal("hello\nsecret-key\n/history\n/exit\n", store)

	require.NoError(t, tm.run(context.Background()))

	v, err := store.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", v)

	require.Len(t, p.params, 1)
	assert.Equal(t, "secret-key", p.params[0].Credential)

	text := out.String()
	assert.Contains(t, text, "[API Key Required]")
	assert.Contains(t, text, "[API Key Saved]")
	assert.Contains(t, text, "Assistant: you said hello")
	assert.Equal(t, 3, tm.session.Conversation.Len())
}

func TestTerminal_BlankLinesAreIgnored(t *testing.T) {
	store := credentials.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "k", "key"))
	tm, _, p := newTestTerminal("   \n\nhi", credentials.SingleSlot(store, "k"))

	require.NoError(t, tm.run(context.Background()))

	assert.Len(t, p.params, 1)
	assert.Equal(t, 3, tm.session.Conversation.Len())
}

func TestTerminal_Category(t *testing.T) {
	store := credentials.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "k", "key"))
	tm, out, p := newTestTerminal("/category sports\n/category Quran\nwhat is tawhid\n/exit\n", credentials.SingleSlot(store, "k"))

	require.NoError(t, tm.run(context.Background()))

	assert.Contains(t, out.String(), `Unknown category "sports"`)
	require.Len(t, p.params, 1)
	assert.Equal(t, "quran", p.params[0].Category)
}
