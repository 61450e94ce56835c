package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by a BackendError when a single-row read matches
// nothing.
var ErrNotFound = errors.New("not found")

// ValidationError is a client-side precondition failure. Message is meant to
// be shown to the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// BackendError is any failure returned by the data access layer: network,
// constraint violation or missing row.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError wraps err as a failure of op. A nil err stays nil.
func NewBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}

// PartialWriteError reports a chat row that may have been persisted without
// its participants because the creating transaction could not be rolled
// back.
type PartialWriteError struct {
	ChatID string
	Err    error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("chat %s may be left without participants: %v", e.ChatID, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
