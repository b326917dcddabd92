package pwm

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the time source of a timing loop.
//
// Sleep suspends for d or until ctx is done, whichever comes first, and
// returns ctx.Err() in the latter case. A non-positive d returns at once.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// NewClock adapts a benbjohnson clock (real or mock) to Clock.
func NewClock(c clock.Clock) Clock {
	if c == nil {
		c = clock.New()
	}
	return &ctxClock{c: c}
}

type ctxClock struct {
	c clock.Clock
}

func (c *ctxClock) Now() time.Time { return c.c.Now() }

func (c *ctxClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := c.c.Timer(d)
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}
