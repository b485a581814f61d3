package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

// RetryConfig tunes the backoff loop around model calls.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig backs off 1s, 2s, 4s across three attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// retryablePatterns match transient upstream failures worth a second try.
// Deadline and cancellation errors are deliberately excluded: retrying a
// dead context only burns the caller's budget.
var retryablePatterns = []string{
	"rate limit",
	"quota",
	"429",
	"503",
	"unavailable",
	"overloaded",
	"internal error",
	"connection reset",
	"EOF",
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// withRetry runs fn under the backoff policy, stopping early on
// non-retryable errors or context expiry.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == cfg.MaxAttempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
