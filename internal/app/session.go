package app

import (
	"sync"

	"quizzz-service/internal/domain"
)

// AuthSession is the explicit session context handed to every operation that needs to know
// who is acting. It is created by the transport layer and updated from identity provider
// callbacks, never read from a global.
type AuthSession struct {
	mu          sync.RWMutex
	identity    *domain.Identity
	subscribers map[chan *domain.Identity]struct{}
}

// NewAuthSession creates a session; a nil identity means signed out.
func NewAuthSession(identity *domain.Identity) *AuthSession {
	s := &AuthSession{subscribers: make(map[chan *domain.Identity]struct{})}
	if identity != nil {
		copied := *identity
		s.identity = &copied
	}
	return s
}

// Identity returns the current identity, if any.
func (s *AuthSession) Identity() (domain.Identity, bool) {
	if s == nil {
		return domain.Identity{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return domain.Identity{}, false
	}
	return *s.identity, true
}

// Require returns the identity or ErrNotAuthenticated.
func (s *AuthSession) Require() (domain.Identity, error) {
	identity, ok := s.Identity()
	if !ok {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}
	return identity, nil
}

// Set replaces the identity and notifies subscribers.
func (s *AuthSession) Set(identity *domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if identity == nil {
		s.identity = nil
	} else {
		copied := *identity
		s.identity = &copied
	}
	for ch := range s.subscribers {
		select {
		case ch <- s.identity:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s.identity
		}
	}
}

// Subscribe returns a channel receiving the identity after every change.
// The caller must invoke the returned cancel function.
func (s *AuthSession) Subscribe() (<-chan *domain.Identity, func()) {
	ch := make(chan *domain.Identity, 1)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// BindAuthSession keeps session in sync with the provider's changes for the session's user.
func BindAuthSession(provider IdentityProvider, session *AuthSession) func() {
	identity, ok := session.Identity()
	if !ok {
		return func() {}
	}
	uid := identity.UID
	return provider.OnIdentityChange(func(change domain.IdentityChange) {
		if change.UID != uid {
			return
		}
		session.Set(change.Identity)
	})
}
