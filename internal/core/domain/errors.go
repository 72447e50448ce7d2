package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors represent pipeline failures.
// Adapters wrap their own failures with one of these so callers can
// branch with errors.Is regardless of the backend in use.
var (
	// ErrInvalidConfiguration indicates bad chunking parameters or a
	// missing required credential.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates an operation referenced unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedSource indicates a source URI scheme no loader handles.
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrUnsupportedOperation indicates the configured backend lacks the
	// requested capability.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// Embedding Errors.

	// ErrEmbeddingProvider indicates the embedding call failed.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// Index Errors.

	// ErrDimensionMismatch indicates an embedding length inconsistent
	// with its batch or with the index.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrTransport indicates a non-success response from a storage or
	// index backend.
	ErrTransport = errors.New("transport error")
)

// TransportError carries the backend status and body of a failed call.
type TransportError struct {
	// Op is the logical operation that failed (add, query, get...).
	Op string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Body is the raw response body.
	Body string

	// Err is the underlying network error, if any.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transport error (status %d): %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap returns ErrTransport so errors.Is matches the sentinel.
func (e *TransportError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTransport, e.Err}
	}
	return []error{ErrTransport}
}

// Is reports a 404 response as ErrNotFound.
func (e *TransportError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// DimensionMismatchError describes which vector broke dimensional consistency.
type DimensionMismatchError struct {
	// Expected is the dimensionality of the batch or index.
	Expected int

	// Got is the offending vector's length.
	Got int

	// ID identifies the offending record when known.
	ID string
}

// Error implements the error interface.
func (e *DimensionMismatchError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("dimension mismatch: record %q has %d dimensions, expected %d", e.ID, e.Got, e.Expected)
	}
	return fmt.Sprintf("dimension mismatch: got %d dimensions, expected %d", e.Got, e.Expected)
}

// Unwrap returns ErrDimensionMismatch.
func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}
