package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"quizzz-service/internal/domain"
)

// Loader returns the current result set of a query.
type Loader func(ctx context.Context, collection string, filter domain.Filter) ([]domain.Document, error)

// Feed fans whole-result-set snapshots out to live query subscribers. Each subscriber has a
// one-slot buffer; a slow subscriber only ever sees the newest snapshot.
type Feed struct {
	now func() time.Time

	// pubMu serialises Publish so a stale snapshot is never delivered after a newer one.
	pubMu sync.Mutex

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	collection string
	filter     domain.Filter
	ch         chan domain.Snapshot
}

func New() *Feed {
	return &Feed{now: time.Now, subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a live query and delivers its initial result set. The caller must
// invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(ctx context.Context, collection string, filter domain.Filter, load Loader) (<-chan domain.Snapshot, func(), error) {
	f.pubMu.Lock()
	defer f.pubMu.Unlock()

	docs, err := load(ctx, collection, filter)
	if err != nil {
		return nil, nil, err
	}

	sub := &subscriber{collection: collection, filter: filter, ch: make(chan domain.Snapshot, 1)}
	sub.ch <- domain.Snapshot{Collection: collection, Docs: docs, At: f.now()}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[sub]; ok {
			delete(f.subs, sub)
			close(sub.ch)
		}
		f.mu.Unlock()
	}
	return sub.ch, cancel, nil
}

// Publish reloads every live query on collection and pushes the new result sets.
func (f *Feed) Publish(ctx context.Context, collection string, load Loader) {
	f.pubMu.Lock()
	defer f.pubMu.Unlock()

	f.mu.Lock()
	targets := make([]*subscriber, 0, len(f.subs))
	for sub := range f.subs {
		if sub.collection == collection {
			targets = append(targets, sub)
		}
	}
	f.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	results := make(map[domain.Filter][]domain.Document)
	for _, sub := range targets {
		if _, ok := results[sub.filter]; ok {
			continue
		}
		docs, err := load(ctx, collection, sub.filter)
		if err != nil {
			slog.Error("live query reload failed", "collection", collection, "error", err)
			continue
		}
		results[sub.filter] = docs
	}

	at := f.now()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range targets {
		docs, ok := results[sub.filter]
		if !ok {
			continue
		}
		if _, live := f.subs[sub]; !live {
			continue
		}
		snap := domain.Snapshot{Collection: collection, Docs: docs, At: at}
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
	}
}
