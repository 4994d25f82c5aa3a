package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwidget-backend/internal/conversation"
	"chatwidget-backend/internal/models"
	"chatwidget-backend/internal/services"
)

type countingCompleter struct {
	mu    sync.Mutex
	turns []*services.Turn
}

func (c *countingCompleter) Complete(_ context.Context, turn *services.Turn) models.Message {
	c.mu.Lock()
	c.turns = append(c.turns, turn)
	c.mu.Unlock()
	return models.AssistantMessage("ok")
}

func newTurn(reg *conversation.Registry) *services.Turn {
	return &services.Turn{Session: reg.Create(), Message: models.UserMessage("hi")}
}

func TestPool_CompletesEveryTurnBeforeStop(t *testing.T) {
	c := &countingCompleter{}
	p := NewPool(c, 3, 8)
	p.Start()

	reg := conversation.NewRegistry("", nil)
	for i := 0; i < 25; i++ {
		require.NoError(t, p.Enqueue(newTurn(reg)))
	}
	p.Stop()

	assert.Len(t, c.turns, 25)
}

func TestPool_EnqueueAfterStop(t *testing.T) {
	p := NewPool(&countingCompleter{}, 1, 1)
	p.Start()
	p.Stop()
	p.Stop()

	err := p.Enqueue(newTurn(conversation.NewRegistry("", nil)))
	assert.ErrorIs(t, err, ErrStopped)
}

func TestNewPool_Defaults(t *testing.T) {
	p := NewPool(&countingCompleter{}, 0, 0)
	assert.Equal(t, 1, p.workerCount)
	assert.Equal(t, 1, cap(p.queue))
}
