package app

import (
	"quizzz-service/internal/domain"
)

// FinishPrompt is returned by RequestFinish. When NeedsConfirmation is set the session is
// still running and the caller should ask "N questions left, finish anyway?".
type FinishPrompt struct {
	Remaining         int  `json:"remaining"`
	NeedsConfirmation bool `json:"needsConfirmation"`
}

// OptionView is an option as shown to a learner.
type OptionView struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// QuestionView is a question as shown to a learner; correctness is never exposed.
type QuestionView struct {
	ID       string              `json:"id"`
	Number   int                 `json:"number"`
	Title    string              `json:"title"`
	Type     domain.QuestionType `json:"type"`
	Options  []OptionView        `json:"options"`
	Selected *int                `json:"selected,omitempty"`
}

// PlayView is the learner-facing state of a session.
type PlayView struct {
	QuizID   string         `json:"quizId"`
	Title    string         `json:"title"`
	Current  *QuestionView  `json:"current,omitempty"`
	Answered int            `json:"answered"`
	Total    int            `json:"total"`
	Answers  map[string]int `json:"answers"`
	Finished bool           `json:"finished"`
}

// PlaySession is the ephemeral state of one learner taking one quiz. It is discarded when
// the learner leaves and is not safe for concurrent use.
type PlaySession struct {
	quiz     domain.Quiz
	answers  map[string]int
	cursor   int
	finished bool
}

// NewPlaySession starts a session on the first question.
func NewPlaySession(quiz domain.Quiz) *PlaySession {
	quiz.QuizContent = quiz.QuizContent.Clone()
	return &PlaySession{
		quiz:    quiz,
		answers: make(map[string]int),
	}
}

// Quiz returns the quiz being played.
func (s *PlaySession) Quiz() domain.Quiz {
	return s.quiz
}

// SelectAnswer records or overwrites the learner's choice for a question.
func (s *PlaySession) SelectAnswer(questionID string, optionIndex int) error {
	if s.finished {
		return domain.ErrPlayFinished
	}
	q, ok := s.find(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return domain.ErrOptionNotFound
	}
	s.answers[questionID] = optionIndex
	return nil
}

// AnsweredCount is the number of questions with a selected option.
func (s *PlaySession) AnsweredCount() int {
	return len(s.answers)
}

// Total is the number of questions in the quiz.
func (s *PlaySession) Total() int {
	return len(s.quiz.Questions)
}

// RequestFinish finishes immediately when every question is answered; otherwise it only
// reports how many are left.
func (s *PlaySession) RequestFinish() FinishPrompt {
	remaining := s.Total() - s.AnsweredCount()
	if remaining <= 0 {
		s.finished = true
		return FinishPrompt{}
	}
	return FinishPrompt{Remaining: remaining, NeedsConfirmation: true}
}

// ConfirmFinish finishes regardless of unanswered questions.
func (s *PlaySession) ConfirmFinish() {
	s.finished = true
}

// Finished reports whether the session is over.
func (s *PlaySession) Finished() bool {
	return s.finished
}

// Score counts answered questions whose selected option is correct, out of all questions.
func (s *PlaySession) Score() domain.Score {
	score := domain.Score{Total: len(s.quiz.Questions)}
	for _, q := range s.quiz.Questions {
		idx, ok := s.answers[q.ID]
		if !ok || idx < 0 || idx >= len(q.Options) {
			continue
		}
		if q.Options[idx].IsCorrect {
			score.Correct++
		}
	}
	return score
}

// Current returns the question under the cursor.
func (s *PlaySession) Current() (domain.Question, bool) {
	if len(s.quiz.Questions) == 0 {
		return domain.Question{}, false
	}
	return s.quiz.Questions[s.cursor], true
}

// GoTo moves the cursor to a question.
func (s *PlaySession) GoTo(questionID string) error {
	for i := range s.quiz.Questions {
		if s.quiz.Questions[i].ID == questionID {
			s.cursor = i
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

// Next moves forward; no-op on the last question.
func (s *PlaySession) Next() {
	if s.cursor < len(s.quiz.Questions)-1 {
		s.cursor++
	}
}

// Previous moves back; no-op on the first question.
func (s *PlaySession) Previous() {
	if s.cursor > 0 {
		s.cursor--
	}
}

// View renders the learner-facing state.
func (s *PlaySession) View() PlayView {
	answers := make(map[string]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	view := PlayView{
		QuizID:   s.quiz.ID,
		Title:    s.quiz.Title,
		Answered: len(s.answers),
		Total:    len(s.quiz.Questions),
		Answers:  answers,
		Finished: s.finished,
	}
	if q, ok := s.Current(); ok {
		qv := QuestionView{
			ID:      q.ID,
			Number:  s.cursor + 1,
			Title:   q.Title,
			Type:    q.Type,
			Options: make([]OptionView, len(q.Options)),
		}
		for i, opt := range q.Options {
			qv.Options[i] = OptionView{Index: i, Label: opt.Label}
		}
		if idx, ok := s.answers[q.ID]; ok {
			selected := idx
			qv.Selected = &selected
		}
		view.Current = &qv
	}
	return view
}

func (s *PlaySession) find(questionID string) (domain.Question, bool) {
	for _, q := range s.quiz.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return domain.Question{}, false
}
