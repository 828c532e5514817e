package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"quizzz-service/internal/app"
	"quizzz-service/internal/domain"

	"github.com/gorilla/websocket"
)

func TestWebSocketPlayFlow(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.guest(t)
	quizID := env.seedQuiz(t, sampleQuiz())

	conn := dial(t, env, "/ws/play?quizId="+quizID+"&token="+token)
	defer conn.Close()

	var view app.PlayView
	readPayload(t, conn, "state", &view)
	if view.Total != 2 || view.Current == nil || view.Current.ID != "q1" {
		t.Fatalf("unexpected initial state %+v", view)
	}

	// Option index 0 is a real answer.
	send(t, conn, "select", map[string]any{"questionId": "q1", "optionIndex": 0})
	readPayload(t, conn, "state", &view)
	if view.Answered != 1 || view.Current.Selected == nil || *view.Current.Selected != 0 {
		t.Fatalf("expected q1 answered with 0, got %+v", view)
	}

	send(t, conn, "next", nil)
	readPayload(t, conn, "state", &view)
	if view.Current.ID != "q2" {
		t.Fatalf("expected cursor on q2, got %+v", view.Current)
	}

	send(t, conn, "finish", nil)
	var prompt app.FinishPrompt
	readPayload(t, conn, "finishPrompt", &prompt)
	if prompt.Remaining != 1 || !prompt.NeedsConfirmation {
		t.Fatalf("unexpected prompt %+v", prompt)
	}

	send(t, conn, "confirmFinish", nil)
	var score domain.Score
	readPayload(t, conn, "result", &score)
	if score.Correct != 1 || score.Total != 2 {
		t.Fatalf("expected 1/2, got %+v", score)
	}
	readPayload(t, conn, "state", &view)
	if !view.Finished {
		t.Fatalf("expected finished state")
	}

	send(t, conn, "select", map[string]any{"questionId": "q2", "optionIndex": 1})
	var errPayload errorPayload
	readPayload(t, conn, "error", &errPayload)
	if errPayload.Message != domain.ErrPlayFinished.Error() {
		t.Fatalf("unexpected error %q", errPayload.Message)
	}

	doc, err := env.store.Get(context.Background(), domain.CollectionQuizzes, quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	quiz, err := app.DecodeQuiz(doc)
	if err != nil || quiz.Plays != 1 {
		t.Fatalf("expected play recorded, got %d (%v)", quiz.Plays, err)
	}
}

func TestWebSocketPlayRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	quizID := env.seedQuiz(t, sampleQuiz())

	conn := dial(t, env, "/ws/play?quizId="+quizID)
	defer conn.Close()
	var view app.PlayView
	readPayload(t, conn, "state", &view)

	var errPayload errorPayload
	send(t, conn, "select", map[string]any{"questionId": "q1", "optionIndex": 7})
	readPayload(t, conn, "error", &errPayload)
	if errPayload.Message != domain.ErrOptionNotFound.Error() {
		t.Fatalf("unexpected error %q", errPayload.Message)
	}

	send(t, conn, "goto", map[string]any{"questionId": "nope"})
	readPayload(t, conn, "error", &errPayload)

	send(t, conn, "dance", nil)
	readPayload(t, conn, "error", &errPayload)
	if errPayload.Message != "unsupported message type" {
		t.Fatalf("unexpected error %q", errPayload.Message)
	}
}

func TestWebSocketPlayUnknownQuiz(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env, "/ws/play?quizId=missing")
	defer conn.Close()

	var errPayload errorPayload
	readPayload(t, conn, "error", &errPayload)
	if !strings.Contains(errPayload.Message, domain.ErrNotFound.Error()) {
		t.Fatalf("expected not found, got %q", errPayload.Message)
	}
}

func TestWebSocketCatalogStreamsSnapshots(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuiz(t, sampleQuiz())

	conn := dial(t, env, "/ws/quizzes")
	defer conn.Close()

	waitForCatalog(t, conn, func(p catalogPayload) bool { return len(p.Quizzes) == 1 })

	second := sampleQuiz()
	second.Title = "Geography"
	second.PublishedAt = second.PublishedAt.Add(time.Hour)
	env.seedQuiz(t, second)
	p := waitForCatalog(t, conn, func(p catalogPayload) bool { return len(p.Quizzes) == 2 })
	if p.Quizzes[0].Title != "Geography" {
		t.Fatalf("expected newest first, got %+v", p.Quizzes)
	}

	send(t, conn, "search", map[string]any{"query": "geo"})
	waitForCatalog(t, conn, func(p catalogPayload) bool {
		return len(p.Quizzes) == 1 && p.Quizzes[0].Title == "Geography"
	})
}

func TestWebSocketCatalogByAuthor(t *testing.T) {
	env := newTestEnv(t)
	mine := sampleQuiz()
	mine.Author = "me"
	env.seedQuiz(t, mine)
	env.seedQuiz(t, sampleQuiz())

	conn := dial(t, env, "/ws/quizzes?author=me")
	defer conn.Close()

	p := waitForCatalog(t, conn, func(p catalogPayload) bool { return len(p.Quizzes) > 0 })
	if len(p.Quizzes) != 1 || p.Quizzes[0].Author != "me" {
		t.Fatalf("expected only my quiz, got %+v", p.Quizzes)
	}
}

func TestWebSocketPlayClosesOnSignOut(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.guest(t)
	quizID := env.seedQuiz(t, sampleQuiz())

	conn := dial(t, env, "/ws/play?quizId="+quizID+"&token="+token)
	defer conn.Close()
	var view app.PlayView
	readPayload(t, conn, "state", &view)

	if status, resp := env.do(t, http.MethodPost, "/auth/logout", token, nil); status != http.StatusOK {
		t.Fatalf("logout: %d %s", status, resp.Error)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg inboundMessage
	err := conn.ReadJSON(&msg)
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected close after sign-out, got %v", err)
	}
}

func TestEnqueueStopsWhenWriterIsGone(t *testing.T) {
	send := make(chan int, 1)
	writerDone := make(chan struct{})

	if !enqueue(send, writerDone, 1) {
		t.Fatalf("expected message queued")
	}
	close(writerDone)

	done := make(chan bool, 1)
	go func() { done <- enqueue(send, writerDone, 2) }()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected refusal once the writer stopped")
		}
	case <-time.After(time.Second):
		t.Fatalf("enqueue blocked on a full queue with no writer")
	}
}

func dial(t *testing.T, env *testEnv, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + env.server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%s)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}

func readPayload(t *testing.T, conn *websocket.Conn, expect string, v any) {
	t.Helper()
	_, payload := readNext(conn, t, expect)
	if err := json.Unmarshal(payload, v); err != nil {
		t.Fatalf("decode %s payload: %v", expect, err)
	}
}

func waitForCatalog(t *testing.T, conn *websocket.Conn, done func(catalogPayload) bool) catalogPayload {
	t.Helper()
	for i := 0; i < 10; i++ {
		var p catalogPayload
		readPayload(t, conn, "catalog", &p)
		if done(p) {
			return p
		}
	}
	t.Fatalf("catalog never reached the expected state")
	return catalogPayload{}
}

