package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"quizzz-service/internal/domain"
	"quizzz-service/internal/infra/feed"

	"github.com/google/uuid"
)

// DocumentStore is an in-memory implementation of app.DocumentStore. Documents keep
// insertion order; live queries are served by a feed.Feed.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
	feed        *feed.Feed
	newID       func() string
}

type collection struct {
	order []string
	docs  map[string]map[string]any
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]*collection),
		feed:        feed.New(),
		newID:       uuid.NewString,
	}
}

func (s *DocumentStore) Create(ctx context.Context, name string, data map[string]any) (string, error) {
	cloned, err := clone(data)
	if err != nil {
		return "", err
	}
	id := s.newID()

	s.mu.Lock()
	c := s.collectionLocked(name)
	c.order = append(c.order, id)
	c.docs[id] = cloned
	s.mu.Unlock()

	s.feed.Publish(ctx, name, s.Query)
	return id, nil
}

func (s *DocumentStore) Get(_ context.Context, name, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", name, id, domain.ErrNotFound)
	}
	data, ok := c.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", name, id, domain.ErrNotFound)
	}
	cloned, err := clone(data)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{ID: id, Data: cloned}, nil
}

func (s *DocumentStore) Update(ctx context.Context, name, id string, fields map[string]any) error {
	cloned, err := clone(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	c, ok := s.collections[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", name, id, domain.ErrNotFound)
	}
	data, ok := c.docs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", name, id, domain.ErrNotFound)
	}
	for k, v := range cloned {
		data[k] = v
	}
	s.mu.Unlock()

	s.feed.Publish(ctx, name, s.Query)
	return nil
}

// Delete removes a document; deleting a missing document is not an error.
func (s *DocumentStore) Delete(ctx context.Context, name, id string) error {
	s.mu.Lock()
	c, ok := s.collections[name]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if _, ok := c.docs[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(c.docs, id)
	for i, docID := range c.order {
		if docID == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.feed.Publish(ctx, name, s.Query)
	return nil
}

func (s *DocumentStore) Query(_ context.Context, name string, filter domain.Filter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return []domain.Document{}, nil
	}
	out := make([]domain.Document, 0, len(c.order))
	for _, id := range c.order {
		data := c.docs[id]
		if !matches(data, filter) {
			continue
		}
		cloned, err := clone(data)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Document{ID: id, Data: cloned})
	}
	return out, nil
}

func (s *DocumentStore) Subscribe(ctx context.Context, name string, filter domain.Filter) (<-chan domain.Snapshot, func(), error) {
	return s.feed.Subscribe(ctx, name, filter, s.Query)
}

func (s *DocumentStore) collectionLocked(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]map[string]any)}
		s.collections[name] = c
	}
	return c
}

func matches(data map[string]any, filter domain.Filter) bool {
	if filter.IsZero() {
		return true
	}
	v, ok := data[filter.Field]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == filter.Equals
}

// clone deep-copies a document through its JSON form, which is also what the SQL stores
// hold, so every store hands out the same value types.
func clone(data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	return out, nil
}
