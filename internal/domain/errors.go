package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced exam, submission, question or aggregation that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStore marks a failure of the underlying store.
	ErrStore = errors.New("store failure")
)

var (
	// ErrExamNotFound is returned when an exam definition id is unknown.
	ErrExamNotFound = fmt.Errorf("exam %w", ErrNotFound)
	// ErrSubmissionNotFound is returned when a submission id is unknown.
	ErrSubmissionNotFound = fmt.Errorf("submission %w", ErrNotFound)
	// ErrQuestionNotFound is returned when the question bank has no such id.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrNoSubmissions is returned when a leaderboard is requested for an exam nobody answered.
	ErrNoSubmissions = fmt.Errorf("submissions for exam %w", ErrNotFound)
)

// Invalid builds an ErrValidation carrying a caller-facing reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StoreFailure wraps a driver error so it matches ErrStore while keeping the cause.
func StoreFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
