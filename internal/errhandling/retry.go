// Package errhandling provides retry configuration for upstream requests.
// This file defines backoff calculation and Retry-After header parsing.
package errhandling

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// Default retry configuration values
const (
	DefaultMaxAttempts       = 3
	DefaultDelayMs           = 1000
	DefaultBackoffMultiplier = 2.0
	DefaultMaxDelayMs        = 30000
	MaxRetryAttempts         = 10
	MinBackoffMultiplier     = 1.0

	// DefaultRateLimitRetries caps how many consecutive 429 responses are
	// honored for the same request before giving up.
	DefaultRateLimitRetries = 10
)

// RetryConfig holds retry configuration for upstream requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of retry attempts (0 = no retry).
	// Default: 3, Max: 10
	MaxAttempts int

	// DelayMs is the initial delay between retries in milliseconds.
	// Default: 1000
	DelayMs int

	// BackoffMultiplier is the multiplier for exponential backoff.
	// Default: 2.0, Min: 1.0
	BackoffMultiplier float64

	// MaxDelayMs is the maximum delay between retries in milliseconds.
	// Default: 30000
	MaxDelayMs int
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       DefaultMaxAttempts,
		DelayMs:           DefaultDelayMs,
		BackoffMultiplier: DefaultBackoffMultiplier,
		MaxDelayMs:        DefaultMaxDelayMs,
	}
}

// CalculateDelay calculates the retry delay for a given attempt using
// exponential backoff: min(delayMs * (backoffMultiplier ^ attempt), maxDelayMs).
func (c RetryConfig) CalculateDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delayMs := float64(c.DelayMs) * math.Pow(c.BackoffMultiplier, float64(attempt))
	if delayMs > float64(c.MaxDelayMs) {
		delayMs = float64(c.MaxDelayMs)
	}

	return time.Duration(delayMs) * time.Millisecond
}

// ShouldRetry determines if a retry should be attempted based on the attempt
// number and error. Fatal errors (authentication, upstream) are never retried.
func (c RetryConfig) ShouldRetry(attempt int, err error) bool {
	if err == nil {
		return false
	}
	if c.MaxAttempts == 0 || attempt >= c.MaxAttempts {
		return false
	}
	return IsRetryable(err)
}

// ParseRetryAfter parses a Retry-After header value into a wait duration.
// Supports both delta-seconds ("120") and HTTP-date formats. Returns the
// fallback when the header is absent or unparseable.
func ParseRetryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return fallback
		}
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		wait := time.Until(t)
		if wait < 0 {
			return fallback
		}
		return wait
	}

	return fallback
}
