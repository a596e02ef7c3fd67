package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthorized is returned when the acting user fails the
	// submission policy or the VERIFIED-only-for-leaders rule.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrEmptyPayload is returned when a submission carries no link with a
	// non-blank URL. Rejected before any write happens.
	ErrEmptyPayload = errors.New("submission payload is empty")

	ErrTaskNotFound  = errors.New("task not found")
	ErrGroupNotFound = errors.New("group not found")
	ErrInvalidStatus = errors.New("invalid task status")
)

// StepError reports which step of a cascading delete failed. Steps already
// committed are not rolled back; the caller may re-invoke the deletion, which
// is idempotent.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("deletion step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
