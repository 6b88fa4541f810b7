package ir

import (
	"errors"
	"fmt"
)

// Error is the single error type returned by the core for business-rule
// failures. Infrastructure failures (SQLite, I/O) are plain wrapped errors.
//
// Every Error aborts its triggering action with no partial effect.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable reason.
	Message string

	// IssuanceID identifies the affected issuance, when there is one.
	IssuanceID IssuanceID

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes core errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed or out-of-range parameters.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeInvalidAmount indicates a zero or negative ledger amount.
	ErrCodeInvalidAmount ErrorCode = "INVALID_AMOUNT"

	// ErrCodeInsufficientBalance indicates a debit exceeding available funds.
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"

	// ErrCodeInvalidState indicates an action attempted outside its legal state.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeUnauthorized indicates the caller lacks the required relationship.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeNotFound indicates an unknown issuance or instrument.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeCannotDeactivate indicates the instrument lifecycle guard was violated.
	ErrCodeCannotDeactivate ErrorCode = "CANNOT_DEACTIVATE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.IssuanceID != 0 {
		return fmt.Sprintf("%s: %s (issuance=%d)", e.Code, e.Message, e.IssuanceID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes errors.Is match on code, so callers can write
// errors.Is(err, &ir.Error{Code: ir.ErrCodeNotFound}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithIssuance returns a copy of e scoped to an issuance.
func (e *Error) WithIssuance(id IssuanceID) *Error {
	c := *e
	c.IssuanceID = id
	return &c
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return IsCode(err, ErrCodeNotFound) }

// IsInsufficientBalance reports whether err is an INSUFFICIENT_BALANCE error.
func IsInsufficientBalance(err error) bool { return IsCode(err, ErrCodeInsufficientBalance) }

// ValidationError creates an error for malformed instrument parameters.
func ValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// InvalidAmount creates an error for a non-positive ledger amount.
func InvalidAmount(amount int64) *Error {
	return &Error{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("amount must be positive, got %d", amount),
		Details: map[string]string{"amount": fmt.Sprintf("%d", amount)},
	}
}

// AmountOverflow creates an error for a credit that would exceed the largest
// representable balance or asset total.
func AmountOverflow(owner Address, asset AssetID, held, amount int64) *Error {
	return &Error{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("crediting %d %s to %s overflows %d", amount, asset, owner, held),
		Details: map[string]string{
			"owner":  string(owner),
			"asset":  string(asset),
			"held":   fmt.Sprintf("%d", held),
			"amount": fmt.Sprintf("%d", amount),
		},
	}
}

// InsufficientBalance creates an error for a debit larger than the balance.
func InsufficientBalance(owner Address, asset AssetID, balance, amount int64) *Error {
	return &Error{
		Code:    ErrCodeInsufficientBalance,
		Message: fmt.Sprintf("insufficient %s balance for %s (%d < %d)", asset, owner, balance, amount),
		Details: map[string]string{
			"owner":   string(owner),
			"asset":   string(asset),
			"balance": fmt.Sprintf("%d", balance),
			"amount":  fmt.Sprintf("%d", amount),
		},
	}
}

// InvalidState creates an error for an action attempted in the wrong state.
func InvalidState(expected, actual IssuanceState) *Error {
	return &Error{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("expected state %s, got %s", expected, actual),
		Details: map[string]string{
			"expected": expected.String(),
			"actual":   actual.String(),
		},
	}
}

// InvalidStatef creates an INVALID_STATE error with a free-form reason, for
// lifecycle guards that are not about an issuance state.
func InvalidStatef(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an error for a caller lacking the required role.
func Unauthorized(caller Address, reason string) *Error {
	return &Error{
		Code:    ErrCodeUnauthorized,
		Message: reason,
		Details: map[string]string{"caller": string(caller)},
	}
}

// NotFound creates an error for an unknown entity.
func NotFound(kind string, id any) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %v not found", kind, id),
	}
}

// CannotDeactivate creates an error for a violated deactivation guard.
func CannotDeactivate(reason string) *Error {
	return &Error{Code: ErrCodeCannotDeactivate, Message: "cannot deactivate: " + reason}
}
