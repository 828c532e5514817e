package memory

import (
	"context"
	"sync"

	"quizzz-service/internal/domain"
)

// maxPendingNotices bounds the per-user queue; older notices are dropped first.
const maxPendingNotices = 20

// NoticeBoard queues one-shot notices per user until they are drained.
type NoticeBoard struct {
	mu      sync.Mutex
	pending map[string][]domain.Notice
}

func NewNoticeBoard() *NoticeBoard {
	return &NoticeBoard{pending: make(map[string][]domain.Notice)}
}

func (b *NoticeBoard) Notify(_ context.Context, userID string, notice domain.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := append(b.pending[userID], notice)
	if len(queue) > maxPendingNotices {
		queue = queue[len(queue)-maxPendingNotices:]
	}
	b.pending[userID] = queue
}

// Drain returns and forgets the user's pending notices.
func (b *NoticeBoard) Drain(userID string) []domain.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	notices := b.pending[userID]
	delete(b.pending, userID)
	return notices
}
