package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an infrastructure failure of the engine itself,
// as opposed to a domain error rejecting one action.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ActionID identifies the affected action, if any.
	ActionID string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePoisoned indicates the engine refuses actions after a journal failure.
	ErrCodePoisoned RuntimeErrorCode = "POISONED"

	// ErrCodePersistFailed indicates an executed action could not be journaled.
	ErrCodePersistFailed RuntimeErrorCode = "PERSIST_FAILED"

	// ErrCodeReplayMismatch indicates re-execution diverged from the journal.
	ErrCodeReplayMismatch RuntimeErrorCode = "REPLAY_MISMATCH"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ActionID != "" {
		msg += fmt.Sprintf(" (action=%s)", e.ActionID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

// NewPoisonedError creates a RuntimeError refusing an action.
func NewPoisonedError(cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePoisoned,
		Message: "engine refuses actions after an earlier journal failure",
		Err:     cause,
	}
}

// NewPersistError creates a RuntimeError for a failed journal write.
func NewPersistError(actionID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodePersistFailed,
		Message:  "journal write failed",
		ActionID: actionID,
		Err:      cause,
	}
}

// NewReplayMismatchError creates a RuntimeError for a diverging replay.
func NewReplayMismatchError(mismatches int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeReplayMismatch,
		Message: fmt.Sprintf("%d replayed actions diverge from the journal", mismatches),
	}
}

// IsPoisoned returns true if err reports a poisoned engine.
// Uses errors.As to handle wrapped errors.
func IsPoisoned(err error) bool {
	return isRuntimeCode(err, ErrCodePoisoned)
}

// IsPersistError returns true if err reports a failed journal write.
func IsPersistError(err error) bool {
	return isRuntimeCode(err, ErrCodePersistFailed)
}

// IsReplayMismatch returns true if err reports a diverging replay.
func IsReplayMismatch(err error) bool {
	return isRuntimeCode(err, ErrCodeReplayMismatch)
}

func isRuntimeCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
