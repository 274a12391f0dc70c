package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for consistent error handling across the router.

// ErrNetwork indicates the backend could not be reached (refused, DNS, reset).
type ErrNetwork struct {
	Endpoint string
	Err      error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Endpoint, e.Err)
}

func (e *ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrBadStatus indicates a non-2xx HTTP response.
type ErrBadStatus struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *ErrBadStatus) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.Code, e.Body)
}

// ErrMalformedBody indicates a backend answered 2xx with a body that is not
// a JSON object or carries no recognized content field.
type ErrMalformedBody struct {
	Endpoint string
	Err      error
}

func (e *ErrMalformedBody) Error() string {
	return fmt.Sprintf("malformed body from %s: %v", e.Endpoint, e.Err)
}

func (e *ErrMalformedBody) Unwrap() error {
	return e.Err
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrDispatchExhausted is returned when every candidate endpoint failed or was
// skipped. It carries every attempt for observability.
type ErrDispatchExhausted struct {
	Attempts []DispatchAttempt
	Skipped  []string
}

func (e *ErrDispatchExhausted) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("all candidates exhausted: %d skipped, none attempted", len(e.Skipped))
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Endpoint.URL, a.Outcome))
	}
	return fmt.Sprintf("all candidates exhausted (%d skipped): %s", len(e.Skipped), strings.Join(parts, ", "))
}

// Unwrap exposes every attempt error to errors.Is / errors.As.
func (e *ErrDispatchExhausted) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// IsExhausted reports whether err signals total dispatch failure.
func IsExhausted(err error) bool {
	var exhausted *ErrDispatchExhausted
	return errors.As(err, &exhausted)
}
