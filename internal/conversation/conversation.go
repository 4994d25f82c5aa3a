// Package conversation holds the in-memory chat state of open widget views.
package conversation

import (
	"sync"

	"chatwidget-backend/internal/models"
)

// Conversation is an append-only, ordered sequence of messages.
// Append is the only mutation and every append bumps Version, so a view
// holding version v has exactly the first v messages. Observers are told
// about appends by the chat service; a view that misses one resyncs from All.
type Conversation struct {
	mu       sync.RWMutex
	messages []models.Message
	version  uint64
}

func New(seed ...models.Message) *Conversation {
	c := &Conversation{}
	for _, m := range seed {
		c.messages = append(c.messages, m)
		c.version++
	}
	return c
}

// Append adds msg to the end of the sequence and returns the new version.
func (c *Conversation) Append(msg models.Message) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msg)
	c.version++
	return c.version
}

// All returns a copy of the sequence, front to back.
func (c *Conversation) All() []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

func (c *Conversation) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
