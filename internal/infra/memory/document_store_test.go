package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizzz-service/internal/domain"
)

func TestDocumentStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	id, err := store.Create(ctx, "drafts", map[string]any{"title": "", "author": "u1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Update(ctx, "drafts", id, map[string]any{"title": "Geometry"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, err := store.Get(ctx, "drafts", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Data["title"] != "Geometry" || doc.Data["author"] != "u1" {
		t.Fatalf("expected merged fields, got %+v", doc.Data)
	}

	// Returned documents are copies.
	doc.Data["title"] = "mutated"
	again, _ := store.Get(ctx, "drafts", id)
	if again.Data["title"] != "Geometry" {
		t.Fatalf("store leaked internal map")
	}

	if err := store.Delete(ctx, "drafts", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "drafts", id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.Update(ctx, "drafts", id, map[string]any{"title": "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestDocumentStoreQueryFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	a, _ := store.Create(ctx, "users", map[string]any{"email": "a@example.com"})
	_, _ = store.Create(ctx, "users", map[string]any{"email": "b@example.com"})
	c, _ := store.Create(ctx, "users", map[string]any{"email": "a@example.com"})

	docs, err := store.Query(ctx, "users", domain.Filter{Field: "email", Equals: "a@example.com"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != a || docs[1].ID != c {
		t.Fatalf("expected [%s %s] in insertion order, got %+v", a, c, docs)
	}

	all, _ := store.Query(ctx, "users", domain.Filter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(all))
	}
}

func TestDocumentStoreSubscribeDeliversFullSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()
	_, _ = store.Create(ctx, "quizList", map[string]any{"title": "one"})

	ch, cancel, err := store.Subscribe(ctx, "quizList", domain.Filter{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := receive(t, ch)
	if len(initial.Docs) != 1 {
		t.Fatalf("expected initial snapshot with 1 doc, got %d", len(initial.Docs))
	}

	_, _ = store.Create(ctx, "quizList", map[string]any{"title": "two"})
	update := receive(t, ch)
	if len(update.Docs) != 2 {
		t.Fatalf("expected full snapshot with 2 docs, got %d", len(update.Docs))
	}

	// Writes to other collections do not wake the subscriber.
	_, _ = store.Create(ctx, "drafts", map[string]any{"title": "draft"})
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot %+v", snap)
	default:
	}
}

func TestDocumentStoreSlowSubscriberSeesNewest(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore()

	ch, cancel, err := store.Subscribe(ctx, "quizList", domain.Filter{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	for i := 0; i < 5; i++ {
		_, _ = store.Create(ctx, "quizList", map[string]any{"n": i})
	}
	snap := receive(t, ch)
	if len(snap.Docs) != 5 {
		t.Fatalf("expected newest snapshot with 5 docs, got %d", len(snap.Docs))
	}
}

func TestDocumentStoreCancelClosesChannel(t *testing.T) {
	store := NewDocumentStore()
	ch, cancel, err := store.Subscribe(context.Background(), "quizList", domain.Filter{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	<-ch
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
}

func receive(t *testing.T, ch <-chan domain.Snapshot) domain.Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return domain.Snapshot{}
}
