package entity

import (
	"errors"
	"fmt"
	"invisifeed/lib/validate"
)

// Error kinds surfaced to API callers; wrap them with fmt.Errorf("...: %w")
// and the HTTP layer maps them to a status code.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = validate.ErrInvalid
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidCode  = errors.New("invalid code")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrTransient    = errors.New("temporarily unavailable")
)

// RateLimitError is returned when the daily upload cap is reached.
// TimeLeft is the number of whole hours until the next rollover.
type RateLimitError struct {
	TimeLeft int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("daily upload limit reached, try again after %d hours", e.TimeLeft)
}

// Transient wraps a store, mail or storage failure
func Transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}

// PublicError carries a message that is shown to the caller as is
type PublicError struct {
	Kind    error
	Message string
}

func (e *PublicError) Error() string {
	return e.Message
}

func (e *PublicError) Unwrap() error {
	return e.Kind
}

func Public(kind error, message string) error {
	return &PublicError{Kind: kind, Message: message}
}
