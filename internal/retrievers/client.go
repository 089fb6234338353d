package retrievers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pullsync/runtime/internal/errhandling"
	"github.com/pullsync/runtime/internal/logger"
)

// Default HTTP client values
const (
	defaultTimeout        = 30 * time.Second
	defaultUserAgent      = "Pullsync-Runtime/1.0"
	defaultRateLimitDelay = 1 * time.Second
)

// Client wraps an HTTP client with the upstream-facing behavior every
// retriever shares: basic auth, JSON decoding, and rate-limit backoff.
type Client struct {
	httpClient *http.Client
	username   string
	password   string
	retry      errhandling.RetryConfig

	// sleep is replaceable in tests so backoff does not block
	sleep func(time.Duration)
}

// NewClient creates a client authenticating with HTTP basic auth.
func NewClient(username, password string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		username:   username,
		password:   password,
		retry:      errhandling.DefaultRetryConfig(),
		sleep:      time.Sleep,
	}
}

// GetJSON fetches url and decodes the response body into out.
//
// 429 responses are retried against the same URL after honoring the
// Retry-After header (default 1s), up to the configured retry cap.
// Other retryable failures (transport errors, timeouts) retry with
// exponential backoff. 401 and 403 abort immediately with an
// authentication error; other error statuses classify by code.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	rateLimited := 0
	attempt := 0
	for {
		retryAfter, err := c.getOnce(ctx, url, out)
		if err == nil && retryAfter <= 0 {
			return nil
		}

		var wait time.Duration
		switch {
		case retryAfter > 0:
			if rateLimited >= errhandling.DefaultRateLimitRetries {
				return errhandling.NewRateLimitError(
					fmt.Sprintf("rate limited %d times in a row fetching %s", rateLimited+1, url), nil)
			}
			rateLimited++
			wait = retryAfter
			logger.Logger.Warn("rate limited, backing off",
				"url", url,
				"retry_after", wait.String(),
				"attempt", rateLimited)
		default:
			if !c.retry.ShouldRetry(attempt, err) {
				return err
			}
			wait = c.retry.CalculateDelay(attempt)
			attempt++
			logger.Logger.Warn("transient error, backing off",
				"url", url,
				"error", err.Error(),
				"delay", wait.String(),
				"attempt", attempt)
		}

		select {
		case <-ctx.Done():
			return errhandling.ClassifyError(ctx.Err())
		default:
		}
		c.sleep(wait)
	}
}

// getOnce performs a single request. A positive retryAfter signals a 429
// that the caller should back off and retry.
func (c *Client) getOnce(ctx context.Context, url string, out interface{}) (retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errhandling.ClassifyError(err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errhandling.ClassifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return errhandling.ParseRetryAfter(resp.Header.Get("Retry-After"), defaultRateLimitDelay), nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return 0, errhandling.NewAuthenticationError(resp.StatusCode,
			fmt.Sprintf("credentials rejected for %s", url), nil)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, errhandling.ClassifyHTTPStatus(resp.StatusCode,
			fmt.Sprintf("upstream returned %d for %s: %s", resp.StatusCode, url, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, errhandling.NewUpstreamError(0,
			fmt.Sprintf("decoding response from %s: %v", url, err), err)
	}
	return 0, nil
}
