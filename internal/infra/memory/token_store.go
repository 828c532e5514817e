package memory

import (
	"context"
	"sync"
	"time"
)

// TokenStore remembers revoked token IDs until their tokens would have expired anyway.
type TokenStore struct {
	clock   func() time.Time
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{clock: time.Now, revoked: make(map[string]time.Time)}
}

func (s *TokenStore) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for id, until := range s.revoked {
		if !until.After(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[tokenID] = now.Add(ttl)
	return nil
}

func (s *TokenStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	return until.After(s.clock()), nil
}
