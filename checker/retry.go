package checker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lukemcguire/mdlinkcheck/result"
)

// RetryPolicy configures retry behavior for transient probe failures.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retries (0 = single attempt)
	BaseDelay  time.Duration // Initial backoff delay (1s)
	MaxDelay   time.Duration // Maximum backoff cap (30s)
}

// DefaultRetryPolicy returns a RetryPolicy that performs no retries but has
// sensible backoff values for callers that enable them: 1s base, 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 0,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// checkWithRetry wraps check with exponential backoff.
// It retries on transient failures (network errors, timeouts, 5xx, 429) but
// not on permanent ones (other 4xx, redirect problems, robots.txt).
func (v *Validator) checkWithRetry(ctx context.Context, rawURL string) result.LinkOutcome {
	policy := v.cfg.RetryPolicy
	backoff := policy.BaseDelay

	var outcome result.LinkOutcome
	var attempts int

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		attempts = attempt + 1

		if attempt > 0 {
			select {
			case <-ctx.Done():
				// Keep the last real outcome rather than reporting the cancellation.
				return outcome
			case <-time.After(backoff):
				backoff = min(backoff*2, policy.MaxDelay)
			}
		}

		var status int
		outcome, status = v.check(ctx, rawURL)
		if !shouldRetry(outcome, status) {
			return outcome
		}
		v.logger.Debug("transient failure", "url", rawURL, "attempt", attempts, "reason", outcome.Reason)
	}

	if attempts > 1 {
		outcome.Reason = fmt.Sprintf("%s (after %d attempts)", outcome.Reason, attempts)
	}
	return outcome
}

// shouldRetry reports whether an outcome is worth another attempt.
func shouldRetry(outcome result.LinkOutcome, status int) bool {
	switch outcome.Status {
	case result.StatusValid:
		return false
	case result.StatusBroken:
		return status == http.StatusTooManyRequests || status >= 500
	}

	switch result.ErrorCategory(outcome.Reason) {
	case result.CategoryTimeout,
		result.CategoryConnectionRefused,
		result.CategoryConnectionReset,
		result.CategoryDNSFailure,
		result.CategoryConnection:
		return true
	}
	return false
}
