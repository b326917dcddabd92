package pwm

import (
	"context"
	"errors"
	"sync"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// virtualClock advances instantly: Sleep moves time forward by the requested
// duration plus an optional injected error.
type virtualClock struct {
	mu    sync.Mutex
	now   time.Time
	calls []time.Duration // every Sleep request, including non-positive ones
	slept []time.Duration // requests that actually suspended

	// skew returns extra time added to the n-th suspension (negative wakes
	// early, positive simulates scheduling delay).
	skew func(n int) time.Duration
	// after runs outside the lock once the n-th suspension has completed.
	after func(n int)
}

func newVirtualClock() *virtualClock {
	return &virtualClock{now: epoch}
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.calls = append(c.calls, d)
	if d <= 0 {
		c.mu.Unlock()
		return nil
	}
	n := len(c.slept)
	c.slept = append(c.slept, d)
	adv := d
	if c.skew != nil {
		adv += c.skew(n)
	}
	c.now = c.now.Add(adv)
	after := c.after
	c.mu.Unlock()

	if after != nil {
		after(n)
	}
	return ctx.Err()
}

func (c *virtualClock) Calls() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.calls...)
}

func (c *virtualClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// stopAt cancels the run once virtual time reaches end.
func (c *virtualClock) stopAt(end time.Time, cancel context.CancelFunc) {
	prev := c.after
	c.after = func(n int) {
		if prev != nil {
			prev(n)
		}
		if !c.Now().Before(end) {
			cancel()
		}
	}
}

// gateClock blocks every Sleep until release is closed.
type gateClock struct {
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (c *gateClock) Now() time.Time { return epoch }

func (c *gateClock) Sleep(ctx context.Context, d time.Duration) error {
	c.once.Do(func() { close(c.entered) })
	select {
	case <-c.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type failingOutput struct {
	highErr error
	panics  bool
	closed  bool
}

func (f *failingOutput) SetHigh() error {
	if f.panics {
		panic("line driver exploded")
	}
	return f.highErr
}

func (f *failingOutput) SetLow() error { return nil }

func (f *failingOutput) Close() error {
	f.closed = true
	return nil
}

var errLine = errors.New("line write failed")
