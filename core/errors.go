package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// StoreError reports that the backing store could not be reached or refused an operation.
// Callers may retry; nothing has been written when it is returned from a transaction.
type StoreError struct {
	Err error
}

func NewStoreError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &StoreError{Err: errors.Wrap(err, msg)}
}

func (err StoreError) Error() string {
	return "store unavailable: " + err.Err.Error()
}

func (err StoreError) Unwrap() error { return err.Err }

func IsStoreUnavailable(err error) bool {
	_, ok := errors.Cause(err).(*StoreError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
