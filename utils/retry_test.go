package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"dyfetch/internal"
)

// TestRetryHandler_ExhaustionCount verifies an always-failing operation
// is invoked exactly maxRetries times and the last error is propagated
func TestRetryHandler_ExhaustionCount(t *testing.T) {
	const k = 4
	handler, err := NewRetryHandlerWithDelays(k, []time.Duration{time.Millisecond})
	if err != nil {
		t.Fatalf("NewRetryHandlerWithDelays failed: %v", err)
	}

	calls := 0
	wantErr := errors.New("always fails")
	got := handler.Do(context.Background(), func() error {
		calls++
		return wantErr
	})

	if calls != k {
		t.Errorf("operation invoked %d times, want %d", calls, k)
	}
	if got != wantErr {
		t.Errorf("Do returned %v, want the last operation error %v", got, wantErr)
	}
}

// TestRetryHandler_SuccessStopsRetrying verifies no further attempts
// happen after a success
func TestRetryHandler_SuccessStopsRetrying(t *testing.T) {
	handler, _ := NewRetryHandlerWithDelays(5, []time.Duration{time.Millisecond})

	calls := 0
	err := handler.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("operation invoked %d times, want 3", calls)
	}
}

// TestRetryHandler_NonRetryableStopsEarly verifies permanent typed
// errors are not retried
func TestRetryHandler_NonRetryableStopsEarly(t *testing.T) {
	handler, _ := NewRetryHandlerWithDelays(5, []time.Duration{time.Millisecond})

	calls := 0
	permErr := internal.NewMissingMediaError("7001")
	got := handler.Do(context.Background(), func() error {
		calls++
		return permErr
	})

	if calls != 1 {
		t.Errorf("permanent error retried: %d calls, want 1", calls)
	}
	if got != permErr {
		t.Errorf("Do returned %v, want %v", got, permErr)
	}
}

// TestRetryHandler_DelayClamping verifies delays beyond the sequence
// clamp to the last value
func TestRetryHandler_DelayClamping(t *testing.T) {
	delays := []time.Duration{time.Millisecond, 2 * time.Millisecond}
	handler, _ := NewRetryHandlerWithDelays(10, delays)

	cases := []struct {
		failureIndex int
		want         time.Duration
	}{
		{0, time.Millisecond},
		{1, 2 * time.Millisecond},
		{2, 2 * time.Millisecond},
		{7, 2 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := handler.delayFor(tc.failureIndex); got != tc.want {
			t.Errorf("delayFor(%d) = %v, want %v", tc.failureIndex, got, tc.want)
		}
	}
}

// TestRetryHandler_InvalidMaxRetries verifies construction fails fast
// for retry counts below 1
func TestRetryHandler_InvalidMaxRetries(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewRetryHandler(n); err == nil {
			t.Errorf("NewRetryHandler(%d) should fail", n)
		}
	}
}

// TestRetryHandler_ContextCancellation verifies a cancelled context
// aborts the backoff wait
func TestRetryHandler_ContextCancellation(t *testing.T) {
	handler, _ := NewRetryHandlerWithDelays(3, []time.Duration{5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	err := handler.Do(ctx, func() error {
		calls++
		return errors.New("transient")
	})
	elapsed := time.Since(start)

	if err != context.DeadlineExceeded {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times before cancellation, want 1", calls)
	}
	if elapsed > time.Second {
		t.Fatalf("Do waited too long after cancellation: %v", elapsed)
	}
}
