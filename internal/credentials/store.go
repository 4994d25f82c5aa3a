// Package credentials keeps the opaque provider credential for each session.
package credentials

import (
	"context"
	"errors"
	"sync"
)

// LocalStorageKey is the key the widget and the terminal client use for
// their locally cached credential.
const LocalStorageKey = "rapidApiKey"

var ErrNotFound = errors.New("credential not found")

// Store persists one credential per key. Values are opaque and never validated.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// singleSlot stores every key under one fixed key.
type singleSlot struct {
	inner Store
	key   string
}

// SingleSlot returns a Store that ignores the caller's key and keeps one
// credential under key. The terminal client uses it so its credential
// survives across sessions.
func SingleSlot(inner Store, key string) Store {
	return singleSlot{inner: inner, key: key}
}

func (s singleSlot) Get(ctx context.Context, _ string) (string, error) {
	return s.inner.Get(ctx, s.key)
}

func (s singleSlot) Set(ctx context.Context, _ string, value string) error {
	return s.inner.Set(ctx, s.key, value)
}

func (s singleSlot) Delete(ctx context.Context, _ string) error {
	return s.inner.Delete(ctx, s.key)
}
