// Package errhandling provides error classification for the pull runtime.
// Failures are contained at the smallest scope that preserves forward
// progress: item > batch > source > run. Classification decides which scope
// an error belongs to and whether it may be retried.
package errhandling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorCategory represents the type/category of an error.
// Categories determine the error handling strategy.
type ErrorCategory string

// Error categories for classification.
const (
	// CategoryNetwork represents network-related errors (timeout, connection
	// refused, DNS). Typically transient and retryable.
	CategoryNetwork ErrorCategory = "network"

	// CategoryAuthentication represents rejected credentials (401, 403).
	// Fatal for the source; never retried.
	CategoryAuthentication ErrorCategory = "authentication"

	// CategoryValidation represents malformed requests or configuration
	// (400, 422). Not retryable.
	CategoryValidation ErrorCategory = "validation"

	// CategoryRateLimit represents rate limiting (429). Retryable after the
	// server-specified interval.
	CategoryRateLimit ErrorCategory = "rate_limit"

	// CategoryUpstream represents non-retryable upstream API failures.
	// Pulling for that source stops; already-written items are preserved.
	CategoryUpstream ErrorCategory = "upstream"

	// CategoryPersistence represents per-row write failures. Contained at
	// item scope: counted, never aborts the batch.
	CategoryPersistence ErrorCategory = "persistence"

	// CategoryTransform represents per-field transform failures. Contained
	// at item scope: the item proceeds with its best-effort value.
	CategoryTransform ErrorCategory = "transform"

	// CategoryUnknown represents unclassified errors, retryable by default
	// (transient more likely than permanent).
	CategoryUnknown ErrorCategory = "unknown"
)

// ClassifiedError wraps an error with classification metadata.
type ClassifiedError struct {
	// Category is the error classification category.
	Category ErrorCategory

	// Retryable indicates whether the error is transient and can be retried.
	Retryable bool

	// StatusCode is the HTTP status code (0 if not an HTTP error).
	StatusCode int

	// Message is a human-readable error message.
	Message string

	// OriginalErr is the underlying error that was classified.
	OriginalErr error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Category, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

// Unwrap returns the original error for use with errors.Is and errors.As.
func (e *ClassifiedError) Unwrap() error {
	return e.OriginalErr
}

// ClassifyHTTPStatus classifies an upstream HTTP response status.
//
// Classification rules:
//   - 401, 403: Authentication errors (not retryable, surfaced immediately)
//   - 429: Rate limit errors (retryable)
//   - 400, 404, 422 and other 4xx: Upstream errors (not retryable)
//   - 5xx: Upstream errors (not retryable per-page; the page is not
//     silently dropped, the source stops)
func ClassifyHTTPStatus(statusCode int, message string) *ClassifiedError {
	switch {
	case statusCode == 401:
		return &ClassifiedError{
			Category:   CategoryAuthentication,
			Retryable:  false,
			StatusCode: statusCode,
			Message:    "unauthorized",
		}
	case statusCode == 403:
		return &ClassifiedError{
			Category:   CategoryAuthentication,
			Retryable:  false,
			StatusCode: statusCode,
			Message:    "forbidden",
		}
	case statusCode == 429:
		return &ClassifiedError{
			Category:   CategoryRateLimit,
			Retryable:  true,
			StatusCode: statusCode,
			Message:    "rate limited",
		}
	case statusCode >= 400:
		return &ClassifiedError{
			Category:   CategoryUpstream,
			Retryable:  false,
			StatusCode: statusCode,
			Message:    message,
		}
	default:
		return &ClassifiedError{
			Category:   CategoryUnknown,
			Retryable:  true,
			StatusCode: statusCode,
			Message:    message,
		}
	}
}

// ClassifyError classifies any error into a ClassifiedError.
// Already classified errors pass through; network errors are recognized by
// type; everything else is unknown and retryable by default.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return &ClassifiedError{
			Category:  CategoryUnknown,
			Retryable: false,
			Message:   "nil error",
		}
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{
			Category:    CategoryNetwork,
			Retryable:   true,
			Message:     "request timeout",
			OriginalErr: err,
		}
	}

	// Context canceled is user initiated, never retried.
	if errors.Is(err, context.Canceled) {
		return &ClassifiedError{
			Category:    CategoryNetwork,
			Retryable:   false,
			Message:     "context canceled",
			OriginalErr: err,
		}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var urlErr *url.Error
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &urlErr) {
		return &ClassifiedError{
			Category:    CategoryNetwork,
			Retryable:   true,
			Message:     err.Error(),
			OriginalErr: err,
		}
	}

	return &ClassifiedError{
		Category:    CategoryUnknown,
		Retryable:   true,
		Message:     err.Error(),
		OriginalErr: err,
	}
}

// IsRetryable returns true if the error is classified as retryable.
// Nil errors return false.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Retryable
}

// IsAuthError returns true if the error is an authentication failure.
// Authentication errors are fatal per-source and must never be retried.
func IsAuthError(err error) bool {
	return GetErrorCategory(err) == CategoryAuthentication
}

// GetErrorCategory returns the error category for a given error.
// Returns CategoryUnknown for nil or unclassified errors.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category
	}
	return CategoryUnknown
}

// NewAuthenticationError creates a ClassifiedError for rejected credentials.
func NewAuthenticationError(statusCode int, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryAuthentication,
		Retryable:   false,
		StatusCode:  statusCode,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewUpstreamError creates a ClassifiedError for non-retryable upstream failures.
func NewUpstreamError(statusCode int, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryUpstream,
		Retryable:   false,
		StatusCode:  statusCode,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewRateLimitError creates a ClassifiedError for rate limit responses.
func NewRateLimitError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryRateLimit,
		Retryable:   true,
		StatusCode:  429,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewTransformError creates a ClassifiedError for per-field transform failures.
func NewTransformError(field string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryTransform,
		Retryable:   false,
		Message:     fmt.Sprintf("transform failed for field %q", field),
		OriginalErr: originalErr,
	}
}

// NewPersistenceError creates a ClassifiedError for per-row write failures.
func NewPersistenceError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryPersistence,
		Retryable:   false,
		Message:     message,
		OriginalErr: originalErr,
	}
}
