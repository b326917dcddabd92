package pwm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Tuning configures the OS thread that runs a loop. It is applied only when
// Enable is set.
type Tuning struct {
	Enable bool
	// Nice is the scheduling niceness of the loop thread (negative is higher
	// priority and usually needs CAP_SYS_NICE).
	Nice int
	// CPU pins the thread to one CPU; negative disables pinning.
	CPU int
}

// Loop is the timing loop of one channel.
//
// Each iteration is anchored to its own start time: the HIGH and LOW holds
// are followed by a correction sleep for whatever is left of the period.
// An iteration that overran is not caught up later, so scheduling error is
// bounded to one period instead of accumulating.
type Loop struct {
	ch     *Channel
	clk    Clock
	log    zerolog.Logger
	tuning Tuning

	// overrunLog throttles on wall-clock time, not on clk, so the number of
	// overrun log lines under a virtual clock is not deterministic.
	overrunLog rate.Sometimes
}

// NewLoop returns the timing loop for ch. A nil clk means the wall clock.
func NewLoop(ch *Channel, clk Clock, log zerolog.Logger, tuning Tuning) *Loop {
	if clk == nil {
		clk = NewClock(nil)
	}
	return &Loop{
		ch:         ch,
		clk:        clk,
		log:        log.With().Str("channel", ch.name).Logger(),
		tuning:     tuning,
		overrunLog: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
}

// splitPeriod returns the HIGH and LOW hold times for duty d.
func splitPeriod(period time.Duration, d float64) (high, low time.Duration) {
	if math.IsNaN(d) || d < 0 {
		d = 0
	} else if d > 1 {
		d = 1
	}
	high = time.Duration(math.Round(float64(period) * d))
	if high > period {
		high = period
	}
	return high, period - high
}

// Run drives the channel until ctx is done (nil error) or a fatal error
// occurs: the duty cycle store is poisoned or the output rejects a write.
func (l *Loop) Run(ctx context.Context) error {
	if l.tuning.Enable {
		runtime.LockOSThread()
		if err := tuneThread(l.tuning); err != nil {
			l.log.Warn().Err(err).Msg("thread tuning failed; running untuned")
		}
	}

	period := l.ch.period
	for {
		start := l.clk.Now()

		d, err := l.ch.duty.Load()
		if err != nil {
			return fmt.Errorf("pwm: channel %q: read duty: %w", l.ch.name, err)
		}
		high, low := splitPeriod(period, d)

		if high > 0 {
			if err := l.ch.out.SetHigh(); err != nil {
				return fmt.Errorf("pwm: channel %q: set high: %w", l.ch.name, err)
			}
			if err := l.clk.Sleep(ctx, high); err != nil {
				return stopErr(err)
			}
		}
		if low > 0 {
			if err := l.ch.out.SetLow(); err != nil {
				return fmt.Errorf("pwm: channel %q: set low: %w", l.ch.name, err)
			}
			if err := l.clk.Sleep(ctx, low); err != nil {
				return stopErr(err)
			}
		}

		elapsed := l.clk.Now().Sub(start)
		if elapsed < period {
			if err := l.clk.Sleep(ctx, period-elapsed); err != nil {
				return stopErr(err)
			}
		} else if over := elapsed - period; over > 0 {
			l.ch.recordOverrun(over)
			l.overrunLog.Do(func() {
				l.log.Debug().
					Dur("elapsed", elapsed).
					Dur("period", period).
					Uint64("overruns", l.ch.overruns.Load()).
					Msg("iteration overran period")
			})
		}
		l.ch.iterations.Add(1)
	}
}

// stopErr maps a cancelled sleep to a clean stop.
func stopErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
