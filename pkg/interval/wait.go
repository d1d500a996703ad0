package interval

import (
	"context"
	"time"

	"github.com/jmhodges/clock"
)

// WaitFunc blocks for d or until ctx is done, whichever comes first.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Sleeper returns a WaitFunc backed by timers from clk. The timer is stopped
// when the context ends first, so no wait outlives its owner.
func Sleeper(clk clock.Clock) WaitFunc {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		timer := clk.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
