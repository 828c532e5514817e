package app

import (
	"time"

	"quizzz-service/internal/domain"
)

func NewDraftEditorWithIDs(draft domain.Draft, policy DraftPolicy, newID func() string) *DraftEditor {
	e := NewDraftEditor(draft, policy)
	e.newID = newID
	return e
}

func WithClock(now func() time.Time) AuthoringOption {
	return func(s *AuthoringService) { s.now = now }
}

// HeldLocks counts per-draft locks currently allocated.
func (s *AuthoringService) HeldLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
