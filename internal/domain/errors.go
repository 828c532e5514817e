package domain

import "errors"

var (
	// ErrNotAuthenticated is returned when an operation needs an identity and none is present.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrOwnership is returned when acting on a draft or quiz owned by someone else.
	ErrOwnership = errors.New("not the owner of this document")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the requested document is absent.
	ErrNotFound = errors.New("not found")
	// ErrStoreWrite wraps failed writes against the document store.
	ErrStoreWrite = errors.New("store write failed")
	// ErrLastQuestion is returned when removing the only remaining question of a draft.
	ErrLastQuestion = errors.New("a quiz must keep at least one question")
	// ErrQuestionNotFound indicates a question ID is not part of the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates an option index is out of range.
	ErrOptionNotFound = errors.New("option not found")
	// ErrPlayFinished is returned when answering after the session finished.
	ErrPlayFinished = errors.New("quiz already finished")
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrWeakPassword is returned when a password does not meet the policy.
	ErrWeakPassword = errors.New("password should be at least 8 characters and contain letters and numbers")
)

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is lets errors.Is(err, ErrValidation) match any validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a field-level validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
