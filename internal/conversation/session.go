package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chatwidget-backend/internal/models"
)

// Session is the state of one open widget view.
type Session struct {
	ID           uuid.UUID
	Conversation *Conversation

	mu       sync.Mutex
	awaiting bool
	category string
	lastSeen time.Time
}

// TryBegin marks the session as awaiting a response. It returns false when
// a request is already in flight.
func (s *Session) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting {
		return false
	}
	s.awaiting = true
	return true
}

// Settle clears the awaiting flag.
func (s *Session) Settle() {
	s.mu.Lock()
	s.awaiting = false
	s.mu.Unlock()
}

func (s *Session) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

func (s *Session) Category() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

func (s *Session) SetCategory(c string) {
	s.mu.Lock()
	s.category = c
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting {
		return 0
	}
	return now.Sub(s.lastSeen)
}

// Registry tracks open sessions by ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	greeting string
	onClose  func(id uuid.UUID)
	now      func() time.Time
}

// NewRegistry creates a registry whose sessions start with one assistant
// greeting. onClose, if non-nil, runs after a session is discarded.
func NewRegistry(greeting string, onClose func(id uuid.UUID)) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		greeting: greeting,
		onClose:  onClose,
		now:      time.Now,
	}
}

func (r *Registry) Create() *Session {
	s := &Session{
		ID:           uuid.New(),
		Conversation: New(models.AssistantMessage(r.greeting)),
		lastSeen:     r.now(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns the session and refreshes its idle timer.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Close discards the session. It reports whether the session existed.
func (r *Registry) Close(id uuid.UUID) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok && r.onClose != nil {
		r.onClose(id)
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap closes sessions idle for longer than ttl and returns how many were closed.
// Sessions awaiting a response are never reaped.
func (r *Registry) Reap(ttl time.Duration) int {
	now := r.now()
	var stale []uuid.UUID

	r.mu.RLock()
	for id, s := range r.sessions {
		if s.idleSince(now) > ttl {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.Close(id)
	}
	return len(stale)
}

// RunReaper calls Reap every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Reap(ttl); n > 0 {
				log.Debug().Int("closed", n).Msg("reaped idle sessions")
			}
		}
	}
}
