package app_test

import (
	"context"
	"testing"
	"time"

	"quizzz-service/internal/app"
	"quizzz-service/internal/domain"
	"quizzz-service/internal/infra/memory"
)

func quizDoc(id, title string, published time.Time) domain.Document {
	return domain.Document{ID: id, Data: map[string]any{
		"title":       title,
		"author":      "alice",
		"publishedAt": published.Format(time.RFC3339Nano),
		"questions":   []any{},
	}}
}

func TestReplaceOrdersNewestFirst(t *testing.T) {
	c := app.NewCatalog(memory.NewDocumentStore(), domain.Filter{})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	at := base.Add(time.Hour)

	c.Replace(domain.Snapshot{
		Docs: []domain.Document{
			quizDoc("old", "Old", base),
			quizDoc("new", "New", base.Add(2*time.Hour)),
			quizDoc("mid", "Mid", base.Add(time.Hour)),
		},
		At: at,
	})

	list := c.List("")
	if len(list) != 3 || list[0].ID != "new" || list[1].ID != "mid" || list[2].ID != "old" {
		t.Fatalf("unexpected order %+v", list)
	}
	if !c.UpdatedAt().Equal(at) {
		t.Fatalf("expected updatedAt %v, got %v", at, c.UpdatedAt())
	}
}

func TestReplaceBreaksTiesByLaterPosition(t *testing.T) {
	c := app.NewCatalog(memory.NewDocumentStore(), domain.Filter{})
	same := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c.Replace(domain.Snapshot{
		Docs: []domain.Document{
			quizDoc("first", "First", same),
			quizDoc("newest", "Newest", same.Add(time.Minute)),
			quizDoc("second", "Second", same),
			quizDoc("third", "Third", same),
		},
		At: same,
	})

	list := c.List("")
	want := []string{"newest", "third", "second", "first"}
	if len(list) != len(want) {
		t.Fatalf("expected %d quizzes, got %+v", len(want), list)
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d: expected %s, got %+v", i, id, list)
		}
	}
}

func TestReplaceDiscardsPreviousSnapshot(t *testing.T) {
	c := app.NewCatalog(memory.NewDocumentStore(), domain.Filter{})
	now := time.Now()
	c.Replace(domain.Snapshot{Docs: []domain.Document{quizDoc("a", "A", now), quizDoc("b", "B", now)}, At: now})
	c.Replace(domain.Snapshot{Docs: []domain.Document{quizDoc("c", "C", now)}, At: now})

	if list := c.List(""); len(list) != 1 || list[0].ID != "c" {
		t.Fatalf("expected only the latest snapshot, got %+v", list)
	}
}

func TestReplaceSkipsMalformedDocuments(t *testing.T) {
	c := app.NewCatalog(memory.NewDocumentStore(), domain.Filter{})
	now := time.Now()
	bad := domain.Document{ID: "bad", Data: map[string]any{"questions": "not a list"}}

	c.Replace(domain.Snapshot{Docs: []domain.Document{bad, quizDoc("ok", "Fine", now)}, At: now})
	if list := c.List(""); len(list) != 1 || list[0].ID != "ok" {
		t.Fatalf("expected malformed doc skipped, got %+v", list)
	}
}

func TestListSearchIsCaseInsensitive(t *testing.T) {
	c := app.NewCatalog(memory.NewDocumentStore(), domain.Filter{})
	now := time.Now()
	c.Replace(domain.Snapshot{Docs: []domain.Document{
		quizDoc("1", "World History", now),
		quizDoc("2", "Chemistry", now.Add(-time.Minute)),
		quizDoc("3", "history of art", now.Add(-2*time.Minute)),
	}, At: now})

	got := c.List("  HISTORY ")
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("unexpected search result %+v", got)
	}
	if all := c.List(""); len(all) != 3 {
		t.Fatalf("empty search returns everything, got %d", len(all))
	}
	if none := c.List("biology"); len(none) != 0 {
		t.Fatalf("expected no match, got %+v", none)
	}
}

func TestRunFollowsStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewDocumentStore()
	c := app.NewCatalog(store, domain.Filter{})
	updates, stop := c.Subscribe()
	defer stop()
	<-updates // current, empty

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor := func(n int) []domain.QuizSummary {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case list := <-updates:
				if len(list) == n {
					return list
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %d quizzes", n)
			}
		}
	}

	waitFor(0)
	id, _ := store.Create(ctx, domain.CollectionQuizzes, quizDoc("", "Live", time.Now()).Data)
	if list := waitFor(1); list[0].ID != id || list[0].Title != "Live" {
		t.Fatalf("unexpected catalog %+v", list)
	}
	_ = store.Delete(ctx, domain.CollectionQuizzes, id)
	waitFor(0)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
}

func TestRunWithAuthorFilter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewDocumentStore()
	_, _ = store.Create(ctx, domain.CollectionQuizzes, map[string]any{"title": "A", "author": "alice"})
	_, _ = store.Create(ctx, domain.CollectionQuizzes, map[string]any{"title": "B", "author": "bob"})

	c := app.NewCatalog(store, domain.Filter{Field: "author", Equals: "bob"})
	go func() { _ = c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for c.UpdatedAt().IsZero() {
		if time.Now().After(deadline) {
			t.Fatalf("catalog never received a snapshot")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if list := c.List(""); len(list) != 1 || list[0].Author != "bob" {
		t.Fatalf("expected only bob's quiz, got %+v", list)
	}
}
