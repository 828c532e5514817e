package domain

import "time"

// Collections used in the document store.
const (
	CollectionDrafts  = "drafts"
	CollectionQuizzes = "quizList"
	CollectionUsers   = "users"
)

// QuestionType controls how option correctness is toggled while authoring.
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	return t == QuestionSingle || t == QuestionMultiple
}

// Option is one answer of a question. Its position in Question.Options is the index
// referenced by play sessions.
type Option struct {
	Label     string `json:"label"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question is a single- or multiple-choice question.
type Question struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options"`
}

// QuizContent is the authored part shared by drafts and published quizzes.
type QuizContent struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	CoverURL    string     `json:"coverURL"`
	Questions   []Question `json:"questions"`
}

// Clone returns a deep copy of the content.
func (c QuizContent) Clone() QuizContent {
	out := c
	out.Tags = append([]string{}, c.Tags...)
	out.Questions = make([]Question, len(c.Questions))
	for i, q := range c.Questions {
		q.Options = append([]Option{}, q.Options...)
		out.Questions[i] = q
	}
	return out
}

// Draft is an in-progress quiz owned by exactly one author.
type Draft struct {
	ID         string `json:"-"`
	Author     string `json:"author"`
	AuthorName string `json:"authorName"`
	QuizContent
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	out := d
	out.QuizContent = d.QuizContent.Clone()
	return out
}

// Quiz is a published quiz.
type Quiz struct {
	ID         string `json:"-"`
	Author     string `json:"author"`
	AuthorName string `json:"authorName"`
	QuizContent
	Plays       int       `json:"plays"`
	PublishedAt time.Time `json:"publishedAt"`
}

// QuizSummary is the list projection used by the catalog.
type QuizSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Tags          []string  `json:"tags"`
	CoverURL      string    `json:"coverURL"`
	Author        string    `json:"author"`
	AuthorName    string    `json:"authorName"`
	Plays         int       `json:"plays"`
	QuestionCount int       `json:"questionCount"`
	PublishedAt   time.Time `json:"publishedAt"`
}

// Summary projects a quiz for list views.
func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:            q.ID,
		Title:         q.Title,
		Description:   q.Description,
		Category:      q.Category,
		Tags:          append([]string{}, q.Tags...),
		CoverURL:      q.CoverURL,
		Author:        q.Author,
		AuthorName:    q.AuthorName,
		Plays:         q.Plays,
		QuestionCount: len(q.Questions),
		PublishedAt:   q.PublishedAt,
	}
}

// Score is the outcome of a finished play session.
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Identity describes a signed-in user.
type Identity struct {
	UID           string `json:"uid"`
	DisplayName   string `json:"displayName"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	PhotoURL      string `json:"photoURL"`
	Anonymous     bool   `json:"anonymous"`
}

// IdentityChange is emitted by an identity provider. A nil Identity means signed out.
type IdentityChange struct {
	UID      string
	Identity *Identity
}

// NoticeKind classifies one-shot user notices.
type NoticeKind string

const (
	NoticeStoreWriteFailure NoticeKind = "storeWriteFailure"
	NoticeLastQuestion      NoticeKind = "lastQuestion"
)

// Notice is a one-shot, user-facing message.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}
