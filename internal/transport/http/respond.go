package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quizzz-service/internal/domain"
)

type envelope struct {
	Data    any             `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Field   string          `json:"field,omitempty"`
	Notices []domain.Notice `json:"notices"`
}

// respond writes data along with any notices pending for the caller.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, envelope{Data: data, Notices: s.pendingNotices(r)})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	body := envelope{Error: err.Error(), Notices: s.pendingNotices(r)}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Error = verr.Message
		body.Field = verr.Field
	}
	writeJSON(w, status, body)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, envelope{Error: msg, Notices: s.pendingNotices(r)})
}

func (s *Server) pendingNotices(r *http.Request) []domain.Notice {
	notices := []domain.Notice{}
	if s.notices == nil {
		return notices
	}
	identity, ok := sessionFrom(r.Context()).Identity()
	if !ok {
		return notices
	}
	return append(notices, s.notices.Drain(identity.UID)...)
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrOwnership):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrWeakPassword):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrOptionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLastQuestion), errors.Is(err, domain.ErrEmailTaken), errors.Is(err, domain.ErrPlayFinished):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
