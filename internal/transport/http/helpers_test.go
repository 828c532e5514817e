package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"quizzz-service/internal/app"
	"quizzz-service/internal/auth"
	"quizzz-service/internal/domain"
	"quizzz-service/internal/infra/blob"
	"quizzz-service/internal/infra/memory"
)

type testEnv struct {
	server *httptest.Server
	store  *flakyStore
}

// flakyStore fails draft updates on demand.
type flakyStore struct {
	*memory.DocumentStore
	failUpdates atomic.Bool
}

func (s *flakyStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if s.failUpdates.Load() && collection == domain.CollectionDrafts {
		return errors.New("backend unavailable")
	}
	return s.DocumentStore.Update(ctx, collection, id, fields)
}

type apiResponse struct {
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Field   string          `json:"field"`
	Notices []domain.Notice `json:"notices"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := &flakyStore{DocumentStore: memory.NewDocumentStore()}
	notices := memory.NewNoticeBoard()
	quizRepo := memory.NewQuizRepository(app.NewDocumentQuizLoader(store), time.Minute)
	covers, err := blob.NewFSStore(t.TempDir(), "/covers/")
	if err != nil {
		t.Fatalf("cover store: %v", err)
	}

	authoring := app.NewAuthoringService(store, memory.NewDraftWorkspace(memory.DefaultDraftIdle), notices,
		app.WithCoverStore(covers),
		app.WithQuizCache(quizRepo),
	)
	play := app.NewPlayService(quizRepo, store, notices)
	catalog := app.NewCatalog(store, domain.Filter{})
	provider := auth.NewProvider(store, auth.NewTokenIssuer("test-secret-test-secret-test-secret", time.Hour), memory.NewTokenStore())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = catalog.Run(ctx) }()

	router := NewRouter(Deps{
		Authoring: authoring,
		Play:      play,
		Catalog:   catalog,
		Store:     store,
		Identity:  provider,
		Notices:   notices,
		Covers:    covers,
	}, Options{})
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &testEnv{server: server, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func (e *testEnv) guest(t *testing.T) (string, domain.Identity) {
	t.Helper()
	status, resp := e.do(t, http.MethodPost, "/auth/guest", "", nil)
	if status != http.StatusCreated {
		t.Fatalf("guest sign in: %d %s", status, resp.Error)
	}
	var session auth.Session
	decodeData(t, resp, &session)
	return session.Token, session.Identity
}

func (e *testEnv) seedQuiz(t *testing.T, quiz domain.Quiz) string {
	t.Helper()
	raw, _ := json.Marshal(quiz)
	fields := map[string]any{}
	_ = json.Unmarshal(raw, &fields)
	id, err := e.store.Create(context.Background(), domain.CollectionQuizzes, fields)
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	return id
}

func decodeData(t *testing.T, resp apiResponse, v any) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", resp.Data, err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Author:     "author-1",
		AuthorName: "Ada",
		QuizContent: domain.QuizContent{
			Title: "Arithmetic",
			Tags:  []string{"math"},
			Questions: []domain.Question{
				{
					ID:    "q1",
					Title: "What is 2 + 2?",
					Type:  domain.QuestionSingle,
					Options: []domain.Option{
						{Label: "4", IsCorrect: true},
						{Label: "5"},
					},
				},
				{
					ID:    "q2",
					Title: "What is 3 + 3?",
					Type:  domain.QuestionSingle,
					Options: []domain.Option{
						{Label: "5"},
						{Label: "6", IsCorrect: true},
					},
				},
			},
		},
		PublishedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}
