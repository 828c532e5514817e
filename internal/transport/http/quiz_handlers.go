package http

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"quizzz-service/internal/app"
	"quizzz-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

// learnerQuiz is a published quiz without its answer key.
type learnerQuiz struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Tags        []string          `json:"tags"`
	CoverURL    string            `json:"coverURL"`
	Author      string            `json:"author"`
	AuthorName  string            `json:"authorName"`
	Plays       int               `json:"plays"`
	PublishedAt time.Time         `json:"publishedAt"`
	Questions   []learnerQuestion `json:"questions"`
}

type learnerQuestion struct {
	ID      string              `json:"id"`
	Title   string              `json:"title"`
	Type    domain.QuestionType `json:"type"`
	Options []string            `json:"options"`
}

type catalogPayload struct {
	Quizzes   []domain.QuizSummary `json:"quizzes"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func newLearnerQuiz(quiz domain.Quiz) learnerQuiz {
	out := learnerQuiz{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Category:    quiz.Category,
		Tags:        append([]string{}, quiz.Tags...),
		CoverURL:    quiz.CoverURL,
		Author:      quiz.Author,
		AuthorName:  quiz.AuthorName,
		Plays:       quiz.Plays,
		PublishedAt: quiz.PublishedAt,
		Questions:   make([]learnerQuestion, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		labels := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			labels = append(labels, o.Label)
		}
		out.Questions = append(out.Questions, learnerQuestion{ID: q.ID, Title: q.Title, Type: q.Type, Options: labels})
	}
	return out
}

func (s *Server) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes := s.catalog.List(r.URL.Query().Get("search"))
	if author := r.URL.Query().Get("author"); author != "" {
		quizzes = byAuthor(quizzes, author)
	}
	s.respond(w, r, http.StatusOK, catalogPayload{Quizzes: quizzes, UpdatedAt: s.catalog.UpdatedAt()})
}

func (s *Server) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.play.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, newLearnerQuiz(quiz))
}

func (s *Server) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := s.authoring.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID"), sessionFrom(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) serveCover(w http.ResponseWriter, r *http.Request) {
	if s.covers == nil {
		http.NotFound(w, r)
		return
	}
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	rc, err := s.covers.Get(key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer rc.Close()
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = io.Copy(w, rc)
}

func byAuthor(quizzes []domain.QuizSummary, author string) []domain.QuizSummary {
	out := make([]domain.QuizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		if q.Author == author {
			out = append(out, q)
		}
	}
	return out
}

// catalogFor returns the shared catalog, or a catalog following only author's quizzes.
func (s *Server) catalogFor(author string) *app.Catalog {
	if author == "" {
		return s.catalog
	}
	return app.NewCatalog(s.store, domain.Filter{Field: "author", Equals: author})
}
