package app

import (
	"fmt"
	"strings"
	"time"

	"quizzz-service/internal/domain"

	"github.com/google/uuid"
)

// DraftField names the top-level draft fields settable through SetField.
type DraftField string

const (
	FieldTitle       DraftField = "title"
	FieldDescription DraftField = "description"
	FieldCategory    DraftField = "category"
	FieldCoverURL    DraftField = "coverURL"
)

// DefaultQuestionTitle is the title of freshly added questions.
const DefaultQuestionTitle = "Untitled Question"

// DraftPolicy holds the defaults applied to new questions.
type DraftPolicy struct {
	DefaultQuestionType domain.QuestionType
	OptionsPerQuestion  int
}

// DefaultDraftPolicy is the policy of the current authoring tool: multiple choice, four options.
func DefaultDraftPolicy() DraftPolicy {
	return DraftPolicy{DefaultQuestionType: domain.QuestionMultiple, OptionsPerQuestion: 4}
}

func (p DraftPolicy) normalized() DraftPolicy {
	if !p.DefaultQuestionType.Valid() {
		p.DefaultQuestionType = domain.QuestionMultiple
	}
	if p.OptionsPerQuestion <= 0 {
		p.OptionsPerQuestion = 4
	}
	return p
}

// DraftEditor applies authoring mutations to one draft. It is not safe for concurrent use;
// AuthoringService serialises access.
type DraftEditor struct {
	draft    domain.Draft
	policy   DraftPolicy
	tagInput string
	newID    func() string

	// lastWrite is the canonical form of the last content written to the store.
	lastWrite []byte
}

// NewDraftEditor wraps a copy of draft.
func NewDraftEditor(draft domain.Draft, policy DraftPolicy) *DraftEditor {
	d := draft.Clone()
	normalizeContent(&d.QuizContent)
	return &DraftEditor{
		draft:  d,
		policy: policy.normalized(),
		newID:  uuid.NewString,
	}
}

// Draft returns a deep copy of the current state.
func (e *DraftEditor) Draft() domain.Draft {
	return e.draft.Clone()
}

// Author returns the UID recorded when the draft was created.
func (e *DraftEditor) Author() string {
	return e.draft.Author
}

// TagInput returns the raw, uncommitted tag input.
func (e *DraftEditor) TagInput() string {
	return e.tagInput
}

// SetField replaces one of the top-level text fields.
func (e *DraftEditor) SetField(field DraftField, value string) error {
	switch field {
	case FieldTitle:
		e.draft.Title = value
	case FieldDescription:
		e.draft.Description = value
	case FieldCategory:
		e.draft.Category = value
	case FieldCoverURL:
		e.draft.CoverURL = value
	default:
		return domain.NewValidationError(string(field), "unknown field")
	}
	return nil
}

// AddTag splits raw on commas, trims every segment, drops empty ones and appends the rest
// in order. The tag input buffer is cleared.
func (e *DraftEditor) AddTag(raw string) []string {
	added := make([]string, 0)
	for _, segment := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(segment)
		if tag == "" {
			continue
		}
		added = append(added, tag)
	}
	e.draft.Tags = append(e.draft.Tags, added...)
	e.tagInput = ""
	return added
}

// TypeTagInput records the raw input and commits it once it contains a comma.
func (e *DraftEditor) TypeTagInput(raw string) bool {
	e.tagInput = raw
	if !strings.Contains(raw, ",") {
		return false
	}
	e.AddTag(raw)
	return true
}

// RemoveTag deletes the tag at index; out of range is a no-op.
func (e *DraftEditor) RemoveTag(index int) {
	if index < 0 || index >= len(e.draft.Tags) {
		return
	}
	e.draft.Tags = append(e.draft.Tags[:index], e.draft.Tags[index+1:]...)
}

// AddQuestion appends a question built from the policy defaults.
func (e *DraftEditor) AddQuestion() domain.Question {
	q := domain.Question{
		ID:      e.newID(),
		Title:   DefaultQuestionTitle,
		Type:    e.policy.DefaultQuestionType,
		Options: make([]domain.Option, e.policy.OptionsPerQuestion),
	}
	for i := range q.Options {
		q.Options[i] = domain.Option{Label: fmt.Sprintf("Option %d", i+1)}
	}
	e.draft.Questions = append(e.draft.Questions, q)
	out := q
	out.Options = append([]domain.Option{}, q.Options...)
	return out
}

// RemoveQuestion deletes a question, refusing to delete the last one.
func (e *DraftEditor) RemoveQuestion(questionID string) error {
	idx := e.questionIndex(questionID)
	if idx < 0 {
		return domain.ErrQuestionNotFound
	}
	if len(e.draft.Questions) == 1 {
		return domain.ErrLastQuestion
	}
	e.draft.Questions = append(e.draft.Questions[:idx], e.draft.Questions[idx+1:]...)
	return nil
}

// SetQuestionTitle replaces a question's title.
func (e *DraftEditor) SetQuestionTitle(questionID, title string) error {
	q, err := e.question(questionID)
	if err != nil {
		return err
	}
	q.Title = title
	return nil
}

// SetQuestionType replaces a question's type. Correctness flags are left untouched; the
// single-selection rule only applies to later toggles.
func (e *DraftEditor) SetQuestionType(questionID string, t domain.QuestionType) error {
	if !t.Valid() {
		return domain.NewValidationError("type", fmt.Sprintf("unknown question type %q", t))
	}
	q, err := e.question(questionID)
	if err != nil {
		return err
	}
	q.Type = t
	return nil
}

// SetOptionLabel replaces the label of one option.
func (e *DraftEditor) SetOptionLabel(questionID string, optionIndex int, label string) error {
	opt, err := e.option(questionID, optionIndex)
	if err != nil {
		return err
	}
	opt.Label = label
	return nil
}

// ToggleOption flips an option of a multiple-choice question, or makes it the only correct
// option of a single-choice question.
func (e *DraftEditor) ToggleOption(questionID string, optionIndex int) error {
	q, err := e.question(questionID)
	if err != nil {
		return err
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return domain.ErrOptionNotFound
	}
	if q.Type == domain.QuestionSingle {
		for i := range q.Options {
			q.Options[i].IsCorrect = i == optionIndex
		}
		return nil
	}
	q.Options[optionIndex].IsCorrect = !q.Options[optionIndex].IsCorrect
	return nil
}

// Validate checks what publishing requires.
func (e *DraftEditor) Validate() error {
	if strings.TrimSpace(e.draft.Title) == "" {
		return domain.NewValidationError("title", "Please enter a title of the quiz.")
	}
	return nil
}

func (e *DraftEditor) touch(at time.Time) {
	e.draft.UpdatedAt = at
}

func (e *DraftEditor) questionIndex(questionID string) int {
	for i := range e.draft.Questions {
		if e.draft.Questions[i].ID == questionID {
			return i
		}
	}
	return -1
}

func (e *DraftEditor) question(questionID string) (*domain.Question, error) {
	idx := e.questionIndex(questionID)
	if idx < 0 {
		return nil, domain.ErrQuestionNotFound
	}
	return &e.draft.Questions[idx], nil
}

func (e *DraftEditor) option(questionID string, optionIndex int) (*domain.Option, error) {
	q, err := e.question(questionID)
	if err != nil {
		return nil, err
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return nil, domain.ErrOptionNotFound
	}
	return &q.Options[optionIndex], nil
}
