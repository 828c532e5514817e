package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quizzz-service/internal/domain"
)

// DocumentQuizLoader loads published quizzes straight from the document store. It is the
// backing loader of the quiz caches.
type DocumentQuizLoader struct {
	store DocumentStore
}

func NewDocumentQuizLoader(store DocumentStore) *DocumentQuizLoader {
	return &DocumentQuizLoader{store: store}
}

func (l *DocumentQuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	doc, err := l.store.Get(ctx, domain.CollectionQuizzes, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return DecodeQuiz(doc)
}

// PlayService starts play sessions over published quizzes.
type PlayService struct {
	quizzes  QuizRepository
	store    DocumentStore
	notifier Notifier
	log      *slog.Logger
}

func NewPlayService(quizzes QuizRepository, store DocumentStore, notifier Notifier) *PlayService {
	return &PlayService{quizzes: quizzes, store: store, notifier: notifier, log: slog.Default()}
}

// Start loads the quiz and opens a fresh session on it.
func (s *PlayService) Start(ctx context.Context, quizID string) (*PlaySession, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return NewPlaySession(quiz), nil
}

// GetQuiz returns a published quiz through the cache.
func (s *PlayService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// RecordPlay bumps the play counter of a finished quiz. Failures are reported, never
// returned: the learner's result does not depend on it.
func (s *PlayService) RecordPlay(ctx context.Context, quizID, userID string) {
	doc, err := s.store.Get(ctx, domain.CollectionQuizzes, quizID)
	if err == nil {
		var quiz domain.Quiz
		quiz, err = DecodeQuiz(doc)
		if err == nil {
			err = s.store.Update(ctx, domain.CollectionQuizzes, quizID, map[string]any{"plays": quiz.Plays + 1})
		}
	}
	if err == nil {
		return
	}
	s.log.Error("record play failed", "quiz", quizID, "error", err)
	if s.notifier != nil && userID != "" {
		s.notifier.Notify(ctx, userID, domain.Notice{
			Kind:    domain.NoticeStoreWriteFailure,
			Message: fmt.Sprintf("Could not record play: %v", err),
			At:      time.Now().UTC(),
		})
	}
}
