package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryConfig holds retry configuration for backend calls
type RetryConfig struct {
	MaxAttempts int           // Attempts per call including the first (default: 3)
	BackoffUnit time.Duration // Sleep before retry n is 2^n units (default: 1s)
	Timeout     time.Duration // Per-attempt timeout (default: 60s)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BackoffUnit: 1 * time.Second,
		Timeout:     60 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BackoffUnit < 0 {
		c.BackoffUnit = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// backoff returns the delay after the given zero-based attempt.
func (c RetryConfig) backoff(attempt int) time.Duration {
	return c.BackoffUnit * time.Duration(1<<uint(attempt))
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryWithBackoff executes an operation with retry and exponential backoff.
// Only transient failures are retried and there is no sleep after the last
// attempt. The returned error is always a *BackendError.
func (c *Client) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		attempts++

		// Create timeout context for this attempt
		attemptCtx, cancel := context.WithTimeout(ctx, c.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 0 {
				c.logger.Info("backend call succeeded after retry",
					zap.String("operation", operation),
					zap.Int("attempts", attempts))
			}
			return nil
		}

		lastErr = err
		if !isTransient(err) {
			c.logger.Warn("backend call failed with non-retriable error",
				zap.String("operation", operation),
				zap.Error(err))
			return newBackendError(err, attempts, false)
		}

		if attempt == c.retry.MaxAttempts-1 {
			break
		}

		// The caller went away: a deadline on the attempt is transient, one
		// on the parent is not.
		if ctx.Err() != nil {
			return newBackendError(fmt.Errorf("%s: %w", operation, ctx.Err()), attempts, false)
		}

		delay := c.retry.backoff(attempt)
		c.logger.Warn("backend call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", c.retry.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err))

		if err := c.sleep(ctx, delay); err != nil {
			return newBackendError(fmt.Errorf("%s: canceled during backoff: %w", operation, err), attempts, false)
		}
	}

	return newBackendError(lastErr, attempts, true)
}

func newBackendError(err error, attempts int, transient bool) *BackendError {
	be := &BackendError{Attempts: attempts, Transient: transient, Err: err}
	var se *StatusError
	if errors.As(err, &se) {
		be.StatusCode = se.Code
		be.Body = se.Body
	}
	return be
}

// isTransient determines if an error is worth retrying: rate limiting,
// server-side failures, timeouts and network errors.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
