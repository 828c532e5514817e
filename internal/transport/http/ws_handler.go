package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"quizzz-service/internal/app"
	"quizzz-service/internal/domain"

	"github.com/gorilla/websocket"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type selectPayload struct {
	QuestionID  string `json:"questionId"`
	OptionIndex *int   `json:"optionIndex"`
}

type gotoPayload struct {
	QuestionID string `json:"questionId"`
}

type searchPayload struct {
	Query string `json:"query"`
}

// servePlayWS runs one play session over a websocket. The session lives exactly as long as
// the connection.
func (s *Server) servePlayWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session := sessionFrom(r.Context())
	unbind := app.BindAuthSession(s.identity, session)
	defer unbind()
	if _, signedIn := session.Identity(); signedIn {
		changes, stopWatching := session.Subscribe()
		defer stopWatching()
		go closeOnSignOut(conn, changes)
	}

	play, err := s.play.Start(r.Context(), quizID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := func(typ string, payload any) bool {
		return conn.WriteJSON(outboundMessage[any]{Type: typ, Payload: payload}) == nil
	}
	sendError := func(msg string) bool {
		return send("error", errorPayload{Message: msg})
	}
	finish := func() bool {
		identity, _ := session.Identity()
		s.play.RecordPlay(r.Context(), quizID, identity.UID)
		return send("result", play.Score()) && send("state", play.View())
	}

	if !send("state", play.View()) {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		ok := true
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.OptionIndex == nil {
				ok = sendError("invalid select payload")
				break
			}
			if err := play.SelectAnswer(payload.QuestionID, *payload.OptionIndex); err != nil {
				ok = sendError(err.Error())
				break
			}
			ok = send("state", play.View())
		case "goto":
			var payload gotoPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				ok = sendError("invalid goto payload")
				break
			}
			if err := play.GoTo(payload.QuestionID); err != nil {
				ok = sendError(err.Error())
				break
			}
			ok = send("state", play.View())
		case "next":
			play.Next()
			ok = send("state", play.View())
		case "previous":
			play.Previous()
			ok = send("state", play.View())
		case "finish":
			if play.Finished() {
				ok = sendError(domain.ErrPlayFinished.Error())
				break
			}
			prompt := play.RequestFinish()
			if prompt.NeedsConfirmation {
				ok = send("finishPrompt", prompt)
				break
			}
			ok = finish()
		case "confirmFinish":
			if play.Finished() {
				ok = sendError(domain.ErrPlayFinished.Error())
				break
			}
			play.ConfirmFinish()
			ok = finish()
		default:
			ok = sendError("unsupported message type")
		}
		if !ok {
			break
		}
	}
}

// serveCatalogWS streams the quiz catalog. Every store snapshot is pushed as the complete
// list; the client may change its title search at any time.
func (s *Server) serveCatalogWS(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	author := r.URL.Query().Get("author")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancelRun := context.WithCancel(r.Context())
	defer cancelRun()

	catalog := s.catalogFor(author)
	if catalog != s.catalog {
		go func() {
			if err := catalog.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("author catalog stopped", "author", author, "error", err)
			}
		}()
	}

	updates, cancel := catalog.Subscribe()
	defer cancel()

	searches := make(chan string, 1)
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				slog.Warn("ws write error", "error", err)
				// Unblocks the reader.
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		var current []domain.QuizSummary
		push := func() bool {
			if catalog.UpdatedAt().IsZero() {
				// No snapshot applied yet.
				return true
			}
			msg := outboundMessage[any]{Type: "catalog", Payload: catalogPayload{
				Quizzes:   app.FilterSummaries(current, search),
				UpdatedAt: catalog.UpdatedAt(),
			}}
			select {
			case send <- msg:
				return true
			case <-writerDone:
				return false
			case <-closeSignals:
				return false
			}
		}
		for {
			select {
			case list, ok := <-updates:
				if !ok {
					return
				}
				current = list
				if !push() {
					return
				}
			case q := <-searches:
				search = q
				if !push() {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg string) bool {
		return enqueue(send, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		ok := true
		switch inbound.Type {
		case "search":
			var payload searchPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				ok = reply("invalid search payload")
				break
			}
			select {
			case searches <- payload.Query:
			default:
				select {
				case <-searches:
				default:
				}
				searches <- payload.Query
			}
		default:
			ok = reply("unsupported message type")
		}
		if !ok {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer goroutine unless it has already stopped.
func enqueue[T any](send chan<- T, writerDone <-chan struct{}, msg T) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// closeOnSignOut ends the connection once the session loses its identity.
func closeOnSignOut(conn *websocket.Conn, changes <-chan *domain.Identity) {
	for identity := range changes {
		if identity != nil {
			continue
		}
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "signed out")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
}
