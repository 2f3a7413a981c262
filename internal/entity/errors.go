package entity

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("not authorized")
	ErrConflict     = errors.New("concurrent modification")
	ErrIntegration  = errors.New("integration failure")
)

// Domain errors.
var (
	ErrInvalidLearnerID   = Validation("learner id required")
	ErrInvalidContentRef  = Validation("content reference required")
	ErrInvalidContentType = Validation("unknown content type")
	ErrInvalidGrade       = Validation("unknown grade")
	ErrInvalidMode        = Validation("unknown scheduling mode")
	ErrInvalidPlacement   = Validation("unknown placement mode")
	ErrInvalidWeekday     = Validation("unknown weekday")
	ErrInvalidTimezone    = Validation("unknown timezone")
	ErrInvalidMaxInterval = Validation(fmt.Sprintf("maximum interval must be between %d and %d days", MinMaxInterval, MaxMaxInterval))
	ErrCardNotFound       = &Error{Kind: ErrNotFound, Msg: "card not found"}
	ErrContentNotFound    = &Error{Kind: ErrNotFound, Msg: "content not found"}
	ErrCardNotOwned       = &Error{Kind: ErrUnauthorized, Msg: "card belongs to another learner"}
	ErrVersionMismatch    = &Error{Kind: ErrConflict, Msg: "card version changed"}
	ErrDuplicateCard      = &Error{Kind: ErrConflict, Msg: "card already exists"}
)

// Error is a categorized domain error.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

// Is reports a match against the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds an input validation error.
func Validation(msg string) *Error {
	return &Error{Kind: ErrValidation, Msg: msg}
}

// Validationf builds an input validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// Integration wraps a failed side-channel write. These are logged, never returned to callers.
func Integration(op string, err error) *Error {
	return &Error{Kind: ErrIntegration, Msg: op, Err: err}
}

// IsRetryable reports whether an operation failing with err may be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
