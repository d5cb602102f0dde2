package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition marks a curation action not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStatusChanged is returned when a guarded update lost a race with another writer.
	ErrStatusChanged = errors.New("status changed concurrently")
	// ErrCategoryRequired is returned when approval has no category to resolve.
	ErrCategoryRequired = errors.New("category required")
	// ErrUnknownCategory is returned when a category id does not exist.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrMalformedClassification is returned for unusable classifier replies.
	ErrMalformedClassification = errors.New("malformed classification")
	// ErrClassifierRejected is returned when the classification service refuses a request outright.
	ErrClassifierRejected = errors.New("classification request rejected")
	// ErrUnknownStep is returned for pipeline steps other than collect, classify, full.
	ErrUnknownStep = errors.New("unknown pipeline step")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRunInProgress is returned when a run id is already registered.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrPublishedImmutable is returned when a bulk action targets a published item.
	ErrPublishedImmutable = errors.New("published items cannot be modified")
)

// TransitionError describes a rejected curation action.
type TransitionError struct {
	Action CurationAction
	From   CurationStatus
	To     CurationStatus
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("cannot %s: unknown action (current status %s)", e.Action, e.From)
	}
	return fmt.Sprintf("cannot %s: status %s cannot move to %s", e.Action, e.From, e.To)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
