package services

import (
	"context"
	"time"
)

// BackoffPolicy maps a completed attempt number (1-based) to the
// delay before the next attempt. Representing the policy as a value
// keeps it independently testable and swappable.
type BackoffPolicy func(attempt int) time.Duration

// LinearBackoff waits attempt*base before the next try: the first
// retry waits base, the second 2*base, and so on.
func LinearBackoff(base time.Duration) BackoffPolicy {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return time.Duration(attempt) * base
	}
}

// sleepWithContext sleeps for d unless the context is cancelled first.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
