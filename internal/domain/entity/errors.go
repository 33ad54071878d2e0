package entity

import (
	"errors"
	"fmt"
)

// ErrEmptySummary is returned when the backend stream ended without any fragment
// and empty summaries are not allowed.
var ErrEmptySummary = errors.New("backend produced an empty summary")

type InvalidInputError struct {
	Fields  []string
	Message string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Message
}

// BackendError is a non-2xx answer from the generation backend.
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

type BackendTimeoutError struct {
	Err error
}

func (e *BackendTimeoutError) Error() string {
	return fmt.Sprintf("backend timed out: %v", e.Err)
}

func (e *BackendTimeoutError) Unwrap() error {
	return e.Err
}

// TransportError covers network faults while connecting to or reading from the backend.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsInvalidInput reports whether err is a validation failure.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

// IsGenerationFailure reports whether err should be surfaced as a failed generation.
func IsGenerationFailure(err error) bool {
	var (
		backendErr   *BackendError
		timeoutErr   *BackendTimeoutError
		transportErr *TransportError
	)
	switch {
	case errors.As(err, &backendErr), errors.As(err, &timeoutErr), errors.As(err, &transportErr):
		return true
	case errors.Is(err, ErrEmptySummary):
		return true
	default:
		return false
	}
}
