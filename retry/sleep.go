package retry

import (
	"context"
	"time"
)

// Sleep waits for duration or until ctx is done, whichever comes first.
// Returns the context error in the latter case.
func Sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
