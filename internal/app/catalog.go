package app

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"quizzz-service/internal/domain"
)

// Catalog mirrors the published quiz collection. Every store snapshot replaces the local
// list wholesale; there is no merging or diffing against the previous snapshot.
type Catalog struct {
	store  DocumentStore
	filter domain.Filter
	log    *slog.Logger

	mu          sync.RWMutex
	quizzes     []domain.QuizSummary
	updatedAt   time.Time
	subscribers map[chan []domain.QuizSummary]struct{}
}

func NewCatalog(store DocumentStore, filter domain.Filter) *Catalog {
	return &Catalog{
		store:       store,
		filter:      filter,
		log:         slog.Default(),
		quizzes:     []domain.QuizSummary{},
		subscribers: make(map[chan []domain.QuizSummary]struct{}),
	}
}

// Run follows the live query until ctx is done.
func (c *Catalog) Run(ctx context.Context) error {
	snapshots, cancel, err := c.store.Subscribe(ctx, domain.CollectionQuizzes, c.filter)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			c.Replace(snap)
		}
	}
}

// Replace installs snap as the complete catalog and notifies subscribers.
func (c *Catalog) Replace(snap domain.Snapshot) {
	quizzes := make([]domain.QuizSummary, 0, len(snap.Docs))
	// Walked backwards so that equal publish times keep the later document first.
	for i := len(snap.Docs) - 1; i >= 0; i-- {
		doc := snap.Docs[i]
		quiz, err := DecodeQuiz(doc)
		if err != nil {
			c.log.Warn("skipping malformed quiz document", "quiz", doc.ID, "error", err)
			continue
		}
		quizzes = append(quizzes, quiz.Summary())
	}
	// Newest first.
	sort.SliceStable(quizzes, func(i, j int) bool {
		return quizzes[i].PublishedAt.After(quizzes[j].PublishedAt)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.quizzes = quizzes
	c.updatedAt = snap.At
	for ch := range c.subscribers {
		select {
		case ch <- quizzes:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- quizzes
		}
	}
}

// List returns the catalog, newest first, keeping titles that contain search
// (case-insensitive). An empty search returns everything.
func (c *Catalog) List(search string) []domain.QuizSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return FilterSummaries(c.quizzes, search)
}

// UpdatedAt is the time of the last applied snapshot.
func (c *Catalog) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Subscribe returns a channel receiving the full catalog after every snapshot, starting
// with the current one. The caller must invoke the returned cancel function.
func (c *Catalog) Subscribe() (<-chan []domain.QuizSummary, func()) {
	ch := make(chan []domain.QuizSummary, 1)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	ch <- c.quizzes
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// FilterSummaries applies the title search to a list without modifying it.
func FilterSummaries(quizzes []domain.QuizSummary, search string) []domain.QuizSummary {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.QuizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		if needle == "" || strings.Contains(strings.ToLower(q.Title), needle) {
			out = append(out, q)
		}
	}
	return out
}
