package pwm

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"softpwm/internal/gpio"
)

// ErrInvalidFrequency is returned for non-positive or non-finite frequencies.
var ErrInvalidFrequency = errors.New("pwm: invalid frequency")

// Channel is one software PWM output: an exclusively owned line, a fixed
// frequency and a shared duty cycle.
type Channel struct {
	name   string
	out    gpio.Output
	freqHz float64
	period time.Duration
	duty   *DutyCycle

	iterations atomic.Uint64
	overruns   atomic.Uint64
	maxOverrun atomic.Int64
	running    atomic.Bool

	mu        sync.Mutex
	startedAt time.Time
	lastErr   string
}

// Snapshot is a point-in-time view of a channel.
type Snapshot struct {
	Name        string        `json:"name"`
	FrequencyHz float64       `json:"frequency_hz"`
	Period      time.Duration `json:"period"`
	Duty        float64       `json:"duty"`
	Iterations  uint64        `json:"iterations"`
	Overruns    uint64        `json:"overruns"`
	MaxOverrun  time.Duration `json:"max_overrun"`
	Running     bool          `json:"running"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
}

// NewChannel builds a channel around out. The channel takes ownership of out.
func NewChannel(name string, out gpio.Output, freqHz, duty float64) (*Channel, error) {
	if out == nil {
		return nil, fmt.Errorf("pwm: channel %q: nil output", name)
	}
	period, err := periodOf(freqHz)
	if err != nil {
		return nil, fmt.Errorf("pwm: channel %q: %w", name, err)
	}
	d, err := NewDutyCycle(duty)
	if err != nil {
		return nil, fmt.Errorf("pwm: channel %q: %w", name, err)
	}
	return &Channel{name: name, out: out, freqHz: freqHz, period: period, duty: d}, nil
}

// periodOf returns 1/freqHz rounded to the nearest nanosecond.
func periodOf(freqHz float64) (time.Duration, error) {
	if math.IsNaN(freqHz) || math.IsInf(freqHz, 0) || freqHz <= 0 {
		return 0, fmt.Errorf("%w: %v Hz", ErrInvalidFrequency, freqHz)
	}
	p := time.Duration(math.Round(float64(time.Second) / freqHz))
	if p <= 0 {
		return 0, fmt.Errorf("%w: %v Hz is above 1 GHz", ErrInvalidFrequency, freqHz)
	}
	return p, nil
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) FrequencyHz() float64 { return c.freqHz }

func (c *Channel) Period() time.Duration { return c.period }

// Duty returns the channel's shared duty cycle store. Holders may write it at
// any time; the loop picks the value up at its next iteration.
func (c *Channel) Duty() *DutyCycle { return c.duty }

func (c *Channel) Snapshot() Snapshot {
	duty, _ := c.duty.Load()
	c.mu.Lock()
	startedAt, lastErr := c.startedAt, c.lastErr
	c.mu.Unlock()
	return Snapshot{
		Name:        c.name,
		FrequencyHz: c.freqHz,
		Period:      c.period,
		Duty:        duty,
		Iterations:  c.iterations.Load(),
		Overruns:    c.overruns.Load(),
		MaxOverrun:  time.Duration(c.maxOverrun.Load()),
		Running:     c.running.Load(),
		StartedAt:   startedAt,
		LastError:   lastErr,
	}
}

func (c *Channel) markStarted(at time.Time) {
	c.mu.Lock()
	c.startedAt = at
	c.lastErr = ""
	c.mu.Unlock()
	c.running.Store(true)
}

func (c *Channel) markStopped(err error) {
	c.running.Store(false)
	if err == nil {
		return
	}
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}

func (c *Channel) recordOverrun(by time.Duration) {
	c.overruns.Add(1)
	for {
		cur := c.maxOverrun.Load()
		if int64(by) <= cur || c.maxOverrun.CompareAndSwap(cur, int64(by)) {
			return
		}
	}
}
