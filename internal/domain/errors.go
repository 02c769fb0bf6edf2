package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotInQuiz is returned when a response references a question
	// that does not belong to the submitted quiz. The whole submission is
	// rolled back.
	ErrQuestionNotInQuiz = errors.New("question does not belong to quiz")
	// ErrUnknownAnswer is returned when a submitted answer id is not a valid
	// answer of the referenced question.
	ErrUnknownAnswer = errors.New("unknown answer id")
	// ErrEmptySubmission is returned for a batch with no responses.
	ErrEmptySubmission = errors.New("submission contains no responses")
	// ErrRateLimited signals too many completed submissions in the current
	// window. Callers can show a cooldown message; it is not a validation error.
	ErrRateLimited = errors.New("too many submissions")
	// ErrUserNotFound is returned when an incremental rank update targets a
	// user the store does not know.
	ErrUserNotFound = errors.New("user not found")
)

// ValidationError reports a malformed submission with field-level detail.
// Validation failures are rejected before any grading or persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
