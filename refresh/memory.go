package refresh

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for tests and single-node development.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]*Token
	byDigest map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*Token),
		byDigest: make(map[string]string),
	}
}

// Insert implements Store.
func (m *MemoryStore) Insert(_ context.Context, token *Token) error {
	if token == nil || token.ID == "" || token.Digest == "" {
		return errors.New("refresh token id and digest must be set")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[token.ID]; ok {
		return errors.New("refresh token id already exists")
	}
	if _, ok := m.byDigest[token.Digest]; ok {
		return errors.New("refresh token digest already exists")
	}
	m.byID[token.ID] = cloneToken(token)
	m.byDigest[token.Digest] = token.ID
	return nil
}

// FindByDigest implements Store.
func (m *MemoryStore) FindByDigest(_ context.Context, digest string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byDigest[digest]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneToken(m.byID[id]), nil
}

// RevokeIfActive implements Store.
func (m *MemoryStore) RevokeIfActive(_ context.Context, tokenID string, replacedBy *string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.byID[tokenID]
	if !ok || tok.RevokedAt != nil {
		return false, nil
	}
	revokedAt := at
	tok.RevokedAt = &revokedAt
	if replacedBy != nil {
		next := *replacedBy
		tok.ReplacedByID = &next
	}
	return true, nil
}

// RevokeSession implements Store.
func (m *MemoryStore) RevokeSession(_ context.Context, sessionID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, tok := range m.byID {
		if tok.SessionID != sessionID || tok.RevokedAt != nil {
			continue
		}
		revokedAt := at
		tok.RevokedAt = &revokedAt
		n++
	}
	return n, nil
}

// PurgeExpired implements Store.
func (m *MemoryStore) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, tok := range m.byID {
		if tok.ExpiresAt.After(before) {
			continue
		}
		delete(m.byID, id)
		delete(m.byDigest, tok.Digest)
		n++
	}
	return n, nil
}

// Len returns the number of stored rows.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func cloneToken(t *Token) *Token {
	if t == nil {
		return nil
	}
	out := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		out.RevokedAt = &at
	}
	if t.ReplacedByID != nil {
		id := *t.ReplacedByID
		out.ReplacedByID = &id
	}
	return &out
}
