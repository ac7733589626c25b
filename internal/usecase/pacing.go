package usecase

import (
	"context"
	"time"
)

// waitFor blocks for the pacing interval or until the context is
// cancelled. Pacing sleeps are long (minutes to an hour), so they must
// stay interruptible for clean shutdown.
func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
