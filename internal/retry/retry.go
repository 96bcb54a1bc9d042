package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error is returned by Do when an operation fails fatally or runs out of attempts.
type Error struct {
	Operation string
	Attempts  int
	Exhausted bool
	Err       error
}

func (e *Error) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("%s: all %d attempts failed (last error: %v)", e.Operation, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: non-retryable error on attempt %d: %v", e.Operation, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFatal reports whether err came out of Do as a fatal or exhausted failure.
func IsFatal(err error) bool {
	var retryErr *Error
	return errors.As(err, &retryErr)
}

// Do executes fn until it succeeds, fails with a Fatal error, or MaxAttempts is reached.
// It respects context cancellation and deadlines: a cancelled context is returned as is,
// never wrapped in *Error.
func Do(ctx context.Context, p Policy, operation string, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context cancelled before attempt %d: %w", operation, attempt, err)
		}

		err := fn(ctx)
		AttemptInc(operation)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return fmt.Errorf("%s: %w", operation, err)
		}

		class := Classify(err)
		FailureInc(operation, class)

		if class == Fatal {
			return &Error{Operation: operation, Attempts: attempt, Err: err}
		}

		if attempt == maxAttempts {
			break
		}

		wait := p.delay(attempt)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: context cancelled during backoff (attempt %d/%d): %w",
					operation, attempt, maxAttempts, ctx.Err())
			}
		}

		RetryInc(operation)
	}

	ExhaustedInc(operation)

	return &Error{Operation: operation, Attempts: maxAttempts, Exhausted: true, Err: lastErr}
}
