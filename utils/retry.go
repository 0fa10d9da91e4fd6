package utils

import (
	"context"
	"time"

	"dyfetch/internal"
)

// Fixed escalating backoff, clamped to the last value for later attempts
var defaultBackoffDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
}

// RetryHandler wraps a fallible operation with bounded retries and a
// fixed escalating backoff sequence. Config is immutable after
// construction.
type RetryHandler struct {
	maxRetries int
	delays     []time.Duration
}

// NewRetryHandler creates a RetryHandler with the default backoff
// sequence. maxRetries is the total number of attempts and must be >= 1.
func NewRetryHandler(maxRetries int) (*RetryHandler, error) {
	return NewRetryHandlerWithDelays(maxRetries, defaultBackoffDelays)
}

// NewRetryHandlerWithDelays creates a RetryHandler with a custom backoff
// sequence. Delays beyond the sequence length clamp to the last value.
func NewRetryHandlerWithDelays(maxRetries int, delays []time.Duration) (*RetryHandler, error) {
	if maxRetries < 1 {
		return nil, internal.NewValidationErrorWithValue("retry_times", "must be >= 1", maxRetries).
			WithSuggestion("Retry count of at least 1 is required; 3 is the usual value")
	}
	if len(delays) == 0 {
		delays = defaultBackoffDelays
	}
	copied := make([]time.Duration, len(delays))
	copy(copied, delays)
	return &RetryHandler{maxRetries: maxRetries, delays: copied}, nil
}

// MaxRetries returns the configured attempt bound
func (r *RetryHandler) MaxRetries() int {
	return r.maxRetries
}

// Do invokes op up to maxRetries times, sleeping the backoff delay
// between attempts. The last error is propagated after exhaustion; it
// is never swallowed. Context cancellation aborts the wait and returns
// the context error.
func (r *RetryHandler) Do(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.delayFor(attempt - 1)
			internal.LogDebug("Retry attempt %d/%d after %v: %v", attempt+1, r.maxRetries, delay, lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// delayFor returns the backoff delay for a zero-based failure index,
// clamped to the last configured value
func (r *RetryHandler) delayFor(failureIndex int) time.Duration {
	if failureIndex >= len(r.delays) {
		return r.delays[len(r.delays)-1]
	}
	return r.delays[failureIndex]
}

// isRetryable decides whether an error is transient. Typed platform
// errors carry their own retryability; everything else is assumed
// transient so network-level failures keep their retry budget.
func isRetryable(err error) bool {
	if dyErr, ok := err.(*internal.DouyinError); ok {
		return dyErr.IsRetryable()
	}
	if _, ok := err.(*internal.ValidationError); ok {
		return false
	}
	return true
}
