package app

import (
	"context"
	"io"

	"quizzz-service/internal/domain"
)

// DocumentStore abstracts the hosted document database (memory, SQLite, Postgres).
type DocumentStore interface {
	Create(ctx context.Context, collection string, data map[string]any) (string, error)
	Get(ctx context.Context, collection, id string) (domain.Document, error)
	// Update merges fields into the top level of the stored document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filter domain.Filter) ([]domain.Document, error)
	// Subscribe delivers the current result set immediately and again after every change.
	// The caller must invoke the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, collection string, filter domain.Filter) (<-chan domain.Snapshot, func(), error)
}

// IdentityProvider is the part of the identity backend the core consumes.
type IdentityProvider interface {
	OnIdentityChange(fn func(domain.IdentityChange)) (unsubscribe func())
}

// QuizRepository loads published quizzes (through a cache).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizCache is implemented by quiz repositories that can drop a cached entry.
type QuizCache interface {
	Forget(ctx context.Context, quizID string) error
}

// DraftWorkspace keeps the editors of drafts that are currently open.
type DraftWorkspace interface {
	Get(draftID string) (*DraftEditor, bool)
	Put(draftID string, editor *DraftEditor)
	Drop(draftID string)
}

// Notifier delivers one-shot notices to a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, notice domain.Notice)
}

// BlobStore stores uploaded files such as quiz covers.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error)
	Get(key string) (io.ReadCloser, error)
	URL(key string) string
}
