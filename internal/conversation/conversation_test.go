package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwidget-backend/internal/models"
)

func TestConversation_AppendPreservesOrder(t *testing.T) {
	c := New(models.AssistantMessage("hello"))
	require.Equal(t, uint64(1), c.Version())

	c.Append(models.UserMessage("one"))
	v := c.Append(models.AssistantMessage("two"))

	assert.Equal(t, uint64(3), v)
	assert.Equal(t, []models.Message{
		models.AssistantMessage("hello"),
		models.UserMessage("one"),
		models.AssistantMessage("two"),
	}, c.All())
}

func TestConversation_AllReturnsCopy(t *testing.T) {
	c := New(models.AssistantMessage("hello"))
	snapshot := c.All()
	snapshot[0].Content = "mutated"

	assert.Equal(t, "hello", c.All()[0].Content)
}

func TestConversation_VersionMatchesLength(t *testing.T) {
	c := New(models.AssistantMessage("hello"))
	assert.Equal(t, uint64(1), c.Version())

	// a view holding version v renders All()[:v]; a gap means it resyncs
	seen := c.Version()
	c.Append(models.UserMessage("a"))
	c.Append(models.AssistantMessage("b"))

	all := c.All()
	require.Len(t, all, int(c.Version()))
	missed := all[seen:]
	require.Len(t, missed, 2)
	assert.Equal(t, "a", missed[0].Content)
	assert.Equal(t, "b", missed[1].Content)
}

func TestConversation_ConcurrentAppends(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Append(models.UserMessage("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
	assert.Equal(t, uint64(50), c.Version())
}

func TestSession_TryBeginSerializes(t *testing.T) {
	s := &Session{}
	require.True(t, s.TryBegin())
	assert.False(t, s.TryBegin())
	assert.True(t, s.Awaiting())

	s.Settle()
	assert.False(t, s.Awaiting())
	assert.True(t, s.TryBegin())
}

func TestRegistry_CreateSeedsGreeting(t *testing.T) {
	r := NewRegistry("Hello! How can I help you today?", nil)
	s := r.Create()

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, []models.Message{models.AssistantMessage("Hello! How can I help you today?")}, s.Conversation.All())
}

func TestRegistry_CloseRunsHook(t *testing.T) {
	var closed []uuid.UUID
	r := NewRegistry("hi", func(id uuid.UUID) { closed = append(closed, id) })
	s := r.Create()

	assert.True(t, r.Close(s.ID))
	assert.False(t, r.Close(s.ID))
	assert.Equal(t, []uuid.UUID{s.ID}, closed)

	_, ok := r.Get(s.ID)
	assert.False(t, ok)
}

func TestRegistry_ReapSkipsAwaiting(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry("hi", nil)
	r.now = func() time.Time { return now }

	idle := r.Create()
	busy := r.Create()
	require.True(t, busy.TryBegin())
	fresh := r.Create()

	now = now.Add(3 * time.Hour)
	fresh.touch(now)

	assert.Equal(t, 1, r.Reap(2*time.Hour))

	_, ok := r.Get(idle.ID)
	assert.False(t, ok)
	_, ok = r.Get(busy.ID)
	assert.True(t, ok)
	_, ok = r.Get(fresh.ID)
	assert.True(t, ok)
}

func TestRegistry_GetKeepsSessionAlive(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry("hi", nil)
	r.now = func() time.Time { return now }

	s := r.Create()
	for i := 0; i < 5; i++ {
		now = now.Add(time.Hour)
		_, ok := r.Get(s.ID)
		require.True(t, ok)
		assert.Zero(t, r.Reap(2*time.Hour))
	}

	// five hours after creation, still alive because it kept being used
	_, ok := r.Get(s.ID)
	assert.True(t, ok)
}
