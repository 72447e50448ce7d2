package gcs

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// IsNotFound reports whether err is a 404 from the storage API.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound
	}
	return false
}

// IsRateLimited reports whether err is a 429 from the storage API.
func IsRateLimited(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests
	}
	return false
}

// retryAfter reads the Retry-After header of a throttling response.
func retryAfter(err error) time.Duration {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0
	}
	secs, convErr := strconv.Atoi(gerr.Header.Get("Retry-After"))
	if convErr != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// wrapError converts a storage API failure into a domain.TransportError.
// Errors that did not come from the API are returned as network errors.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Message
		if body == "" {
			body = gerr.Body
		}
		return &domain.TransportError{Op: op, StatusCode: gerr.Code, Body: body}
	}
	return &domain.TransportError{Op: op, Err: err}
}
