package errhandling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status    int
		category  ErrorCategory
		retryable bool
	}{
		{401, CategoryAuthentication, false},
		{403, CategoryAuthentication, false},
		{429, CategoryRateLimit, true},
		{400, CategoryUpstream, false},
		{404, CategoryUpstream, false},
		{422, CategoryUpstream, false},
		{500, CategoryUpstream, false},
		{502, CategoryUpstream, false},
	}
	for _, tt := range tests {
		got := ClassifyHTTPStatus(tt.status, "boom")
		if got.Category != tt.category {
			t.Errorf("status %d category = %v, want %v", tt.status, got.Category, tt.category)
		}
		if got.Retryable != tt.retryable {
			t.Errorf("status %d retryable = %v, want %v", tt.status, got.Retryable, tt.retryable)
		}
		if got.StatusCode != tt.status {
			t.Errorf("status %d code = %d", tt.status, got.StatusCode)
		}
	}
}

func TestClassifyErrorPassthrough(t *testing.T) {
	original := NewAuthenticationError(401, "nope", nil)
	wrapped := fmt.Errorf("fetching page: %w", original)

	got := ClassifyError(wrapped)
	if got != original {
		t.Errorf("wrapped classified error not passed through: %v", got)
	}
}

func TestClassifyErrorContext(t *testing.T) {
	if got := ClassifyError(context.DeadlineExceeded); !got.Retryable || got.Category != CategoryNetwork {
		t.Errorf("deadline exceeded = %+v", got)
	}
	if got := ClassifyError(context.Canceled); got.Retryable {
		t.Errorf("canceled must not be retryable: %+v", got)
	}
}

func TestClassifyErrorNetwork(t *testing.T) {
	err := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	got := ClassifyError(err)
	if got.Category != CategoryNetwork || !got.Retryable {
		t.Errorf("net.OpError = %+v", got)
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(NewAuthenticationError(403, "forbidden", nil)) {
		t.Error("authentication error not recognized")
	}
	if IsAuthError(errors.New("plain")) {
		t.Error("plain error misclassified as auth")
	}
	if IsAuthError(nil) {
		t.Error("nil misclassified as auth")
	}
}

func TestCalculateDelay(t *testing.T) {
	cfg := DefaultRetryConfig()
	if d := cfg.CalculateDelay(0); d != time.Second {
		t.Errorf("attempt 0 = %v, want 1s", d)
	}
	if d := cfg.CalculateDelay(1); d != 2*time.Second {
		t.Errorf("attempt 1 = %v, want 2s", d)
	}
	if d := cfg.CalculateDelay(20); d != 30*time.Second {
		t.Errorf("attempt 20 = %v, want capped 30s", d)
	}
	if d := cfg.CalculateDelay(-1); d != time.Second {
		t.Errorf("negative attempt = %v, want 1s", d)
	}
}

func TestShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()
	transient := NewRateLimitError("slow down", nil)

	if !cfg.ShouldRetry(0, transient) {
		t.Error("retryable error with attempts remaining should retry")
	}
	if cfg.ShouldRetry(cfg.MaxAttempts, transient) {
		t.Error("attempts exhausted, must not retry")
	}
	if cfg.ShouldRetry(0, NewAuthenticationError(401, "nope", nil)) {
		t.Error("auth errors must never retry")
	}
	if cfg.ShouldRetry(0, nil) {
		t.Error("nil error must not retry")
	}
}

func TestParseRetryAfter(t *testing.T) {
	fallback := time.Second

	if d := ParseRetryAfter("", fallback); d != fallback {
		t.Errorf("empty header = %v, want fallback", d)
	}
	if d := ParseRetryAfter("90", fallback); d != 90*time.Second {
		t.Errorf("delta-seconds = %v, want 90s", d)
	}
	if d := ParseRetryAfter("-5", fallback); d != fallback {
		t.Errorf("negative delta = %v, want fallback", d)
	}
	if d := ParseRetryAfter("soonish", fallback); d != fallback {
		t.Errorf("garbage = %v, want fallback", d)
	}

	future := time.Now().Add(2 * time.Minute).UTC().Format(http.TimeFormat)
	if d := ParseRetryAfter(future, fallback); d < time.Minute || d > 2*time.Minute {
		t.Errorf("http-date = %v, want ~2m", d)
	}

	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	if d := ParseRetryAfter(past, fallback); d != fallback {
		t.Errorf("past http-date = %v, want fallback", d)
	}
}
