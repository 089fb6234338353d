package database

import (
	"fmt"
	"strings"
)

// Error categories for database operations
const (
	CategoryConnection  = "connection"
	CategoryQuery       = "query"
	CategoryConstraint  = "constraint"
	CategoryTransaction = "transaction"
	CategoryTimeout     = "timeout"
)

// DatabaseError represents a categorized database error with context.
//
//nolint:revive // DatabaseError is a clear, descriptive name that doesn't stutter in practice
type DatabaseError struct {
	Category    string // Error category (connection, query, constraint, etc.)
	Operation   string // Operation that failed (upsert, schema, mark_deleted, etc.)
	Message     string // User-friendly error message
	OriginalErr error  // The underlying database error
	Retryable   bool   // Whether the error is transient and can be retried
}

func (e *DatabaseError) Error() string {
	msg := fmt.Sprintf("database %s error in %s: %s", e.Category, e.Operation, e.Message)
	if e.OriginalErr != nil {
		msg += fmt.Sprintf(" (original: %v)", e.OriginalErr)
	}
	return msg
}

func (e *DatabaseError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns true if the error is transient and can be retried.
func (e *DatabaseError) IsRetryable() bool {
	return e.Retryable
}

// NewConnectionError creates a connection error (retryable).
func NewConnectionError(message string, originalErr error) *DatabaseError {
	return &DatabaseError{
		Category:    CategoryConnection,
		Operation:   "connect",
		Message:     message,
		OriginalErr: originalErr,
		Retryable:   true,
	}
}

// NewConstraintError creates a constraint violation error (not retryable).
func NewConstraintError(operation, message string, originalErr error) *DatabaseError {
	return &DatabaseError{
		Category:    CategoryConstraint,
		Operation:   operation,
		Message:     message,
		OriginalErr: originalErr,
		Retryable:   false,
	}
}

// ClassifyDatabaseError classifies a raw database error by analyzing its
// message. Timeouts and connection failures are retryable; constraint
// violations and everything else are not.
func ClassifyDatabaseError(err error, operation string) *DatabaseError {
	if err == nil {
		return nil
	}

	errMsg := strings.ToLower(err.Error())

	if containsAny(errMsg, timeoutIndicators) {
		return &DatabaseError{
			Category:    CategoryTimeout,
			Operation:   operation,
			Message:     "operation timed out",
			OriginalErr: err,
			Retryable:   true,
		}
	}
	if containsAny(errMsg, connectionIndicators) {
		return NewConnectionError("connection failed or lost", err)
	}
	if containsAny(errMsg, constraintIndicators) {
		return NewConstraintError(operation, "constraint violation", err)
	}

	return &DatabaseError{
		Category:    CategoryQuery,
		Operation:   operation,
		Message:     err.Error(),
		OriginalErr: err,
		Retryable:   false,
	}
}

var timeoutIndicators = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"context deadline",
}

var connectionIndicators = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"connection closed",
	"broken pipe",
	"bad connection",
	"unexpected eof",
	"server closed",
	"dial tcp",
}

var constraintIndicators = []string{
	"unique constraint",
	"duplicate key",
	"violates unique",
	"violates foreign key",
	"violates not-null",
	"constraint violation",
	"constraint failed",
	"23505", // postgres unique_violation
	"23503", // postgres foreign_key_violation
	"23502", // postgres not_null_violation
}

func containsAny(msg string, indicators []string) bool {
	for _, indicator := range indicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
