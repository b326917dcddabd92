package pwm

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestClock_NonPositiveSleepReturnsImmediately(t *testing.T) {
	c := NewClock(clock.NewMock())
	require.NoError(t, c.Sleep(context.Background(), 0))
	require.NoError(t, c.Sleep(context.Background(), -time.Second))
}

func TestClock_SleepHonoursCancellation(t *testing.T) {
	c := NewClock(clock.NewMock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Sleep(ctx, time.Hour), context.Canceled)

	ctx, cancel = context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Sleep(ctx, time.Hour) }()
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("sleep did not observe cancellation")
	}
}

func TestClock_SleepWakesWhenTimeAdvances(t *testing.T) {
	mock := clock.NewMock()
	c := NewClock(mock)
	start := c.Now()

	done := make(chan error, 1)
	go func() { done <- c.Sleep(context.Background(), 5*time.Millisecond) }()

	var err error
	require.Eventually(t, func() bool {
		select {
		case err = <-done:
			return true
		default:
			mock.Add(time.Millisecond)
			return false
		}
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, err)
	require.GreaterOrEqual(t, c.Now().Sub(start), 5*time.Millisecond)
}

func TestClock_NilUsesWallClock(t *testing.T) {
	c := NewClock(nil)
	before := time.Now()
	require.NoError(t, c.Sleep(context.Background(), time.Millisecond))
	require.GreaterOrEqual(t, time.Since(before), time.Millisecond)
}
