package http

import (
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"quizzz-service/internal/app"
	"quizzz-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

var coverExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

type draftResponse struct {
	ID       string `json:"id"`
	TagInput string `json:"tagInput,omitempty"`
	domain.Draft
}

type fieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type inputRequest struct {
	Input string `json:"input"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type typeRequest struct {
	Type domain.QuestionType `json:"type"`
}

type labelRequest struct {
	Label string `json:"label"`
}

func (s *Server) createDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.authoring.CreateDraft(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, draftResponse{ID: draft.ID, Draft: draft})
}

func (s *Server) loadDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.authoring.LoadDraft(r.Context(), chi.URLParam(r, "draftID"), sessionFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, draftResponse{ID: draft.ID, Draft: draft})
}

func (s *Server) discardDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.authoring.DiscardDraft(r.Context(), chi.URLParam(r, "draftID"), sessionFrom(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) setField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid field payload")
		return
	}
	s.edit(w, r, func(e *app.DraftEditor) error {
		return e.SetField(app.DraftField(req.Field), req.Value)
	})
}

func (s *Server) addTag(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid tag payload")
		return
	}
	s.edit(w, r, func(e *app.DraftEditor) error {
		e.AddTag(req.Input)
		return nil
	})
}

func (s *Server) typeTagInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid tag payload")
		return
	}
	s.edit(w, r, func(e *app.DraftEditor) error {
		e.TypeTagInput(req.Input)
		return nil
	})
}

func (s *Server) removeTag(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.badRequest(w, r, "tag index must be a number")
		return
	}
	s.edit(w, r, func(e *app.DraftEditor) error {
		e.RemoveTag(index)
		return nil
	})
}

func (s *Server) addQuestion(w http.ResponseWriter, r *http.Request) {
	s.edit(w, r, func(e *app.DraftEditor) error {
		e.AddQuestion()
		return nil
	})
}

// removeQuestion refuses to drop the last question with a notice instead of an error.
func (s *Server) removeQuestion(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "questionID")
	var refused bool
	draft, tagInput, err := s.editDraft(r, func(e *app.DraftEditor) error {
		err := e.RemoveQuestion(questionID)
		if errors.Is(err, domain.ErrLastQuestion) {
			refused = true
			return nil
		}
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	notices := s.pendingNotices(r)
	if refused {
		notices = append(notices, domain.Notice{
			Kind:    domain.NoticeLastQuestion,
			Message: domain.ErrLastQuestion.Error(),
			At:      time.Now().UTC(),
		})
	}
	writeJSON(w, http.StatusOK, envelope{
		Data:    draftResponse{ID: draft.ID, TagInput: tagInput, Draft: draft},
		Notices: notices,
	})
}

func (s *Server) setQuestionTitle(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid title payload")
		return
	}
	questionID := chi.URLParam(r, "questionID")
	s.edit(w, r, func(e *app.DraftEditor) error {
		return e.SetQuestionTitle(questionID, req.Title)
	})
}

func (s *Server) setQuestionType(w http.ResponseWriter, r *http.Request) {
	var req typeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid type payload")
		return
	}
	questionID := chi.URLParam(r, "questionID")
	s.edit(w, r, func(e *app.DraftEditor) error {
		return e.SetQuestionType(questionID, req.Type)
	})
}

func (s *Server) setOptionLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid label payload")
		return
	}
	questionID := chi.URLParam(r, "questionID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.badRequest(w, r, "option index must be a number")
		return
	}
	s.edit(w, r, func(e *app.DraftEditor) error {
		return e.SetOptionLabel(questionID, index, req.Label)
	})
}

func (s *Server) toggleOption(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "questionID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.badRequest(w, r, "option index must be a number")
		return
	}
	s.edit(w, r, func(e *app.DraftEditor) error {
		return e.ToggleOption(questionID, index)
	})
}

func (s *Server) uploadCover(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxCover)
	file, header, err := r.FormFile("cover")
	if err != nil {
		s.badRequest(w, r, "cover file required")
		return
	}
	defer file.Close()

	if !coverExtensions[strings.ToLower(path.Ext(header.Filename))] {
		s.fail(w, r, domain.NewValidationError("cover", "Cover must be a PNG, JPEG, GIF or WebP image."))
		return
	}
	draft, err := s.authoring.SetCover(r.Context(), chi.URLParam(r, "draftID"), sessionFrom(r.Context()), header.Filename, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, draftResponse{ID: draft.ID, Draft: draft})
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	quizID, err := s.authoring.Publish(r.Context(), chi.URLParam(r, "draftID"), sessionFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, map[string]string{"quizId": quizID})
}

func (s *Server) edit(w http.ResponseWriter, r *http.Request, mutate func(*app.DraftEditor) error) {
	draft, tagInput, err := s.editDraft(r, mutate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, draftResponse{ID: draft.ID, TagInput: tagInput, Draft: draft})
}

func (s *Server) editDraft(r *http.Request, mutate func(*app.DraftEditor) error) (domain.Draft, string, error) {
	var tagInput string
	draft, err := s.authoring.Edit(r.Context(), chi.URLParam(r, "draftID"), sessionFrom(r.Context()), func(e *app.DraftEditor) error {
		if err := mutate(e); err != nil {
			return err
		}
		tagInput = e.TagInput()
		return nil
	})
	return draft, tagInput, err
}
