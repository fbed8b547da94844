package monitor

import (
	"context"
	"time"
)

// Clock abstracts time for the Poller. Wait blocks for d or until ctx is
// done; tick, when non-nil, is called about once per second with the time
// left so a display can refresh without owning the schedule.
type Clock interface {
	Now() time.Time
	Wait(ctx context.Context, d time.Duration, tick func(left time.Duration)) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Wait(ctx context.Context, d time.Duration, tick func(time.Duration)) error {
	if d <= 0 {
		return ctx.Err()
	}
	deadline := time.Now().Add(d)
	timer := time.NewTimer(d)
	defer timer.Stop()

	var tickC <-chan time.Time
	if tick != nil {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		tickC = t.C
		tick(d)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-tickC:
			if left := time.Until(deadline); left > 0 {
				tick(left)
			}
		}
	}
}
