package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every "record absent" error.
	ErrNotFound = errors.New("not found")
	// ErrQuizNotFound indicates the quiz does not exist.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrDraftNotFound indicates the draft does not exist for the quiz.
	ErrDraftNotFound = fmt.Errorf("draft %w", ErrNotFound)
	// ErrTagNotFound indicates the tag does not exist.
	ErrTagNotFound = fmt.Errorf("tag %w", ErrNotFound)
	// ErrTherapistNotFound indicates the therapist does not exist.
	ErrTherapistNotFound = fmt.Errorf("therapist %w", ErrNotFound)
	// ErrAttemptNotFound indicates the quiz-taking attempt expired or never existed.
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)

	// ErrDuplicateName is returned when a draft or tag name is already taken.
	ErrDuplicateName = errors.New("name already exists")
	// ErrPublishedDraftImmutable is returned when overwriting or deleting the live draft.
	ErrPublishedDraftImmutable = errors.New("published draft cannot be modified or deleted")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrUsageConflict is matched by every *UsageConflictError.
	ErrUsageConflict = errors.New("tag is in use")
	// ErrUnreachable is matched by every *UnreachableError.
	ErrUnreachable = errors.New("collaborator unreachable")
)

// ValidationError is a caller-correctable input problem.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError with a formatted reason.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UsageConflictError blocks a tag deletion that was not confirmed for cascade.
type UsageConflictError struct {
	Usage TagUsage
}

func (e *UsageConflictError) Error() string {
	return fmt.Sprintf("tag %d is referenced by %d therapists, %d questions, %d answers",
		e.Usage.TagID, len(e.Usage.Therapists), len(e.Usage.Questions), len(e.Usage.Answers))
}

func (e *UsageConflictError) Is(target error) bool { return target == ErrUsageConflict }

// UnreachableError reports a fan-out source that could not be queried or mutated.
type UnreachableError struct {
	Source string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Source, e.Err)
}

func (e *UnreachableError) Is(target error) bool { return target == ErrUnreachable }

func (e *UnreachableError) Unwrap() error { return e.Err }
