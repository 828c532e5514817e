package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizzz-service/internal/domain"
	"quizzz-service/internal/infra/feed"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // driver: sqlite
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (collection, id)
);
`

// DocumentStore keeps documents as JSON text in a single SQLite file. Live queries are
// served in-process, so it suits a single instance.
type DocumentStore struct {
	db   *sql.DB
	feed *feed.Feed
}

// Open opens the database at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*DocumentStore, error) {
	if dsn == "" {
		dsn = "file:quizzz.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &DocumentStore{db: db, feed: feed.New()}, nil
}

func (s *DocumentStore) Close() error {
	return s.db.Close()
}

func (s *DocumentStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	now := time.Now().UnixNano()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, string(raw), now, now)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	s.feed.Publish(ctx, collection, s.Query)
	return id, nil
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("load %s/%s: %w", collection, id, err)
	}
	return decode(id, raw)
}

// Update merges fields into the stored document at the top level.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load %s/%s: %w", collection, id, err)
	}

	doc, err := decode(id, raw)
	if err != nil {
		return err
	}
	for k, v := range fields {
		doc.Data[k] = v
	}
	merged, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(merged), time.Now().UnixNano(), collection, id); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	s.feed.Publish(ctx, collection, s.Query)
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.feed.Publish(ctx, collection, s.Query)
	}
	return nil
}

func (s *DocumentStore) Query(ctx context.Context, collection string, filter domain.Filter) ([]domain.Document, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if filter.IsZero() {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, data FROM documents WHERE collection = ? ORDER BY created_at, rowid`, collection)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, data FROM documents
			 WHERE collection = ? AND CAST(json_extract(data, '$.' || ?) AS TEXT) = ?
			 ORDER BY created_at, rowid`,
			collection, filter.Field, filter.Equals)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		var id, raw string
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

func decode(id, raw string) (domain.Document, error) {
	data := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return domain.Document{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return domain.Document{ID: id, Data: data}, nil
}
