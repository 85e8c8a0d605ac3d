package token

import (
	"context"
	"sync"
)

// MemoryStorage is a map-backed Storage for tests and short-lived runs.
// Tokens are lost when the process exits.
type MemoryStorage struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory token storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tokens: make(map[string]Token),
	}
}

// Put stores a token under key, overwriting any previous value. Expired
// tokens may be stored; Retrieve reports them as expired.
func (m *MemoryStorage) Put(key string, token Token) error {
	if !IsValid(token) {
		return ErrTokenInvalid
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = token
	return nil
}

// Retrieve implements Storage
func (m *MemoryStorage) Retrieve(_ context.Context, key string) (Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, exists := m.tokens[key]
	if !exists {
		return Token{}, ErrTokenNotFound
	}
	if IsExpired(token) {
		return Token{}, ErrTokenExpired
	}

	return token, nil
}
