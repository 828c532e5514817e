package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"quizzz-service/internal/domain"
	"quizzz-service/internal/infra/feed"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// NotifyChannel is the LISTEN channel fed by the documents trigger. Payloads are
// collection names.
const NotifyChannel = "documents_changed"

// DocumentStore keeps documents as JSONB rows of the documents table.
type DocumentStore struct {
	pool *pgxpool.Pool
	feed *feed.Feed
	// Set while Listen runs; the trigger then delivers our own writes too.
	listening atomic.Bool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool, feed: feed.New()}
}

func (s *DocumentStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		collection, id, string(raw))
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	s.publish(ctx, collection)
	return id, nil
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("load %s/%s: %w", collection, id, err)
	}
	return decode(id, raw)
}

// Update merges fields into the stored document at the top level.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, id, string(raw))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	s.publish(ctx, collection)
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() > 0 {
		s.publish(ctx, collection)
	}
	return nil
}

func (s *DocumentStore) Query(ctx context.Context, collection string, filter domain.Filter) ([]domain.Document, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter.IsZero() {
		rows, err = s.pool.Query(ctx,
			`SELECT id, data FROM documents WHERE collection = $1 ORDER BY created_at, id`,
			collection)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, data FROM documents WHERE collection = $1 AND data->>$2 = $3 ORDER BY created_at, id`,
			collection, filter.Field, filter.Equals)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc, err := decode(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *DocumentStore) Subscribe(ctx context.Context, collection string, filter domain.Filter) (<-chan domain.Snapshot, func(), error) {
	return s.feed.Subscribe(ctx, collection, filter, s.Query)
}

// Listen relays change notifications written by other instances into the live queries
// of this one. It blocks until ctx is done.
func (s *DocumentStore) Listen(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listening.Store(true)
	defer s.listening.Store(false)
	slog.Info("listening for document changes", "channel", NotifyChannel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		s.feed.Publish(ctx, n.Payload, s.Query)
	}
}

func (s *DocumentStore) publish(ctx context.Context, collection string) {
	if s.listening.Load() {
		return
	}
	s.feed.Publish(ctx, collection, s.Query)
}

func decode(id string, raw []byte) (domain.Document, error) {
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.Document{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return domain.Document{ID: id, Data: data}, nil
}
