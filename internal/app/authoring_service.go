package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"quizzz-service/internal/domain"

	"github.com/google/uuid"
)

// AuthoringService owns the draft lifecycle: creation, ownership-checked editing with
// write-through to the store, and publishing.
type AuthoringService struct {
	store     DocumentStore
	workspace DraftWorkspace
	notifier  Notifier
	covers    BlobStore
	quizCache QuizCache
	policy    DraftPolicy
	now       func() time.Time
	log       *slog.Logger

	mu    sync.Mutex
	locks map[string]*draftLock
}

// draftLock serialises operations on one draft. It is dropped once nobody holds or waits
// for it.
type draftLock struct {
	mu   sync.Mutex
	refs int
}

// AuthoringOption customises an AuthoringService.
type AuthoringOption func(*AuthoringService)

// WithDraftPolicy sets the defaults for new questions.
func WithDraftPolicy(policy DraftPolicy) AuthoringOption {
	return func(s *AuthoringService) { s.policy = policy.normalized() }
}

// WithCoverStore enables cover uploads.
func WithCoverStore(blobs BlobStore) AuthoringOption {
	return func(s *AuthoringService) { s.covers = blobs }
}

// WithQuizCache lets DeleteQuiz evict cached quizzes.
func WithQuizCache(cache QuizCache) AuthoringOption {
	return func(s *AuthoringService) { s.quizCache = cache }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) AuthoringOption {
	return func(s *AuthoringService) { s.log = logger }
}

func NewAuthoringService(store DocumentStore, workspace DraftWorkspace, notifier Notifier, opts ...AuthoringOption) *AuthoringService {
	s := &AuthoringService{
		store:     store,
		workspace: workspace,
		notifier:  notifier,
		policy:    DefaultDraftPolicy(),
		now:       time.Now,
		log:       slog.Default(),
		locks:     make(map[string]*draftLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDraft allocates an empty draft for the signed-in author.
func (s *AuthoringService) CreateDraft(ctx context.Context, session *AuthSession) (domain.Draft, error) {
	identity, err := session.Require()
	if err != nil {
		return domain.Draft{}, err
	}

	now := s.now().UTC()
	draft := domain.Draft{
		Author:     identity.UID,
		AuthorName: identity.DisplayName,
		QuizContent: domain.QuizContent{
			Tags:      []string{},
			Questions: []domain.Question{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields, err := toFields(draft)
	if err != nil {
		return domain.Draft{}, err
	}
	id, err := s.store.Create(ctx, domain.CollectionDrafts, fields)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("%w: create draft: %v", domain.ErrStoreWrite, err)
	}
	draft.ID = id

	editor := NewDraftEditor(draft, s.policy)
	editor.lastWrite = canonical(fields)
	s.workspace.Put(id, editor)
	s.log.Info("draft created", "draft", id, "author", identity.UID)
	return draft.Clone(), nil
}

// LoadDraft fetches a draft for its author. Nothing of the draft is returned to anyone else.
func (s *AuthoringService) LoadDraft(ctx context.Context, draftID string, session *AuthSession) (domain.Draft, error) {
	identity, err := session.Require()
	if err != nil {
		return domain.Draft{}, err
	}

	unlock := s.lock(draftID)
	defer unlock()

	editor, err := s.open(ctx, draftID, identity)
	if err != nil {
		return domain.Draft{}, err
	}
	return editor.Draft(), nil
}

// Edit applies one mutation to the open draft and mirrors the full draft to the store.
// A failed store write is reported as a notice; the local mutation stands.
func (s *AuthoringService) Edit(ctx context.Context, draftID string, session *AuthSession, mutate func(*DraftEditor) error) (domain.Draft, error) {
	identity, err := session.Require()
	if err != nil {
		return domain.Draft{}, err
	}

	unlock := s.lock(draftID)
	defer unlock()

	editor, err := s.open(ctx, draftID, identity)
	if err != nil {
		return domain.Draft{}, err
	}
	if err := mutate(editor); err != nil {
		return domain.Draft{}, err
	}

	if s.persist(ctx, identity.UID, editor) {
		editor.touch(s.now().UTC())
	}
	return editor.Draft(), nil
}

// Publish validates the draft, creates the published quiz and deletes the draft.
func (s *AuthoringService) Publish(ctx context.Context, draftID string, session *AuthSession) (string, error) {
	identity, err := session.Require()
	if err != nil {
		return "", err
	}

	unlock := s.lock(draftID)
	defer unlock()

	editor, err := s.open(ctx, draftID, identity)
	if err != nil {
		return "", err
	}
	if err := editor.Validate(); err != nil {
		return "", err
	}

	draft := editor.Draft()
	quiz := domain.Quiz{
		Author:      draft.Author,
		AuthorName:  draft.AuthorName,
		QuizContent: draft.QuizContent,
		Plays:       0,
		PublishedAt: s.now().UTC(),
	}
	fields, err := toFields(quiz)
	if err != nil {
		return "", err
	}
	quizID, err := s.store.Create(ctx, domain.CollectionQuizzes, fields)
	if err != nil {
		return "", fmt.Errorf("%w: publish draft %s: %v", domain.ErrStoreWrite, draftID, err)
	}

	if err := s.store.Delete(ctx, domain.CollectionDrafts, draftID); err != nil {
		s.reportWriteFailure(ctx, identity.UID, "delete published draft", draftID, err)
	}
	s.close(draftID)
	s.log.Info("draft published", "draft", draftID, "quiz", quizID, "author", identity.UID)
	return quizID, nil
}

// DiscardDraft deletes an unpublished draft owned by the caller.
func (s *AuthoringService) DiscardDraft(ctx context.Context, draftID string, session *AuthSession) error {
	identity, err := session.Require()
	if err != nil {
		return err
	}

	unlock := s.lock(draftID)
	defer unlock()

	if _, err := s.open(ctx, draftID, identity); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, domain.CollectionDrafts, draftID); err != nil {
		return fmt.Errorf("%w: delete draft %s: %v", domain.ErrStoreWrite, draftID, err)
	}
	s.close(draftID)
	return nil
}

// DeleteQuiz removes a published quiz owned by the caller.
func (s *AuthoringService) DeleteQuiz(ctx context.Context, quizID string, session *AuthSession) error {
	identity, err := session.Require()
	if err != nil {
		return err
	}
	doc, err := s.store.Get(ctx, domain.CollectionQuizzes, quizID)
	if err != nil {
		return err
	}
	quiz, err := DecodeQuiz(doc)
	if err != nil {
		return err
	}
	if quiz.Author != identity.UID {
		return domain.ErrOwnership
	}
	if err := s.store.Delete(ctx, domain.CollectionQuizzes, quizID); err != nil {
		return fmt.Errorf("%w: delete quiz %s: %v", domain.ErrStoreWrite, quizID, err)
	}
	if s.quizCache != nil {
		if err := s.quizCache.Forget(ctx, quizID); err != nil {
			s.log.Warn("quiz cache eviction failed", "quiz", quizID, "error", err)
		}
	}
	s.log.Info("quiz deleted", "quiz", quizID, "author", identity.UID)
	return nil
}

// SetCover stores an uploaded cover image and points the draft's coverURL at it.
func (s *AuthoringService) SetCover(ctx context.Context, draftID string, session *AuthSession, filename string, r io.Reader) (domain.Draft, error) {
	if s.covers == nil {
		return domain.Draft{}, domain.NewValidationError("cover", "cover uploads are disabled")
	}
	// Ownership is checked before anything is written.
	if _, err := s.LoadDraft(ctx, draftID, session); err != nil {
		return domain.Draft{}, err
	}
	ext := strings.ToLower(path.Ext(filename))
	key, err := s.covers.Put(path.Join(draftID, uuid.NewString()+ext), r)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("%w: store cover: %v", domain.ErrStoreWrite, err)
	}
	url := s.covers.URL(key)
	return s.Edit(ctx, draftID, session, func(e *DraftEditor) error {
		return e.SetField(FieldCoverURL, url)
	})
}

// open returns the workspace editor for draftID, loading it on first use. Callers hold the
// draft lock.
func (s *AuthoringService) open(ctx context.Context, draftID string, identity domain.Identity) (*DraftEditor, error) {
	if editor, ok := s.workspace.Get(draftID); ok {
		if editor.Author() != identity.UID {
			return nil, domain.ErrOwnership
		}
		return editor, nil
	}

	doc, err := s.store.Get(ctx, domain.CollectionDrafts, draftID)
	if err != nil {
		return nil, err
	}
	draft, err := DecodeDraft(doc)
	if err != nil {
		return nil, err
	}
	if draft.Author != identity.UID {
		return nil, domain.ErrOwnership
	}
	editor := NewDraftEditor(draft, s.policy)
	if fields, err := toFields(draft); err == nil {
		editor.lastWrite = canonical(fields)
	}
	s.workspace.Put(draftID, editor)
	return editor, nil
}

// persist writes the whole draft and reports whether its content changed. Writes that
// would not change anything are skipped.
func (s *AuthoringService) persist(ctx context.Context, userID string, editor *DraftEditor) bool {
	draft := editor.Draft()
	fields, err := toFields(draft)
	if err != nil {
		s.reportWriteFailure(ctx, userID, "encode draft", draft.ID, err)
		return false
	}
	encoded := canonical(fields)
	if bytes.Equal(editor.lastWrite, encoded) {
		return false
	}
	editor.lastWrite = encoded

	fields["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)
	if err := s.store.Update(ctx, domain.CollectionDrafts, draft.ID, fields); err != nil {
		s.reportWriteFailure(ctx, userID, "save draft", draft.ID, err)
	}
	return true
}

func (s *AuthoringService) reportWriteFailure(ctx context.Context, userID, action, id string, err error) {
	s.log.Error("store write failed", "action", action, "id", id, "error", err)
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, userID, domain.Notice{
		Kind:    domain.NoticeStoreWriteFailure,
		Message: fmt.Sprintf("Could not %s: %v", action, err),
		At:      s.now().UTC(),
	})
}

// lock takes the draft's lock and returns its release. Entries live only while in use, so
// probing unknown ids leaves nothing behind.
func (s *AuthoringService) lock(draftID string) func() {
	s.mu.Lock()
	l, ok := s.locks[draftID]
	if !ok {
		l = &draftLock{}
		s.locks[draftID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, draftID)
		}
		s.mu.Unlock()
	}
}

func (s *AuthoringService) close(draftID string) {
	s.workspace.Drop(draftID)
}

// canonical encodes fields without the volatile updatedAt timestamp. encoding/json sorts
// map keys, so equal content encodes to equal bytes.
func canonical(fields map[string]any) []byte {
	stripped := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "updatedAt" {
			continue
		}
		stripped[k] = v
	}
	raw, _ := json.Marshal(stripped)
	return raw
}
