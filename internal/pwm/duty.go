package pwm

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	// ErrDutyOutOfRange is returned for duty cycles outside [0, 1] or NaN.
	ErrDutyOutOfRange = errors.New("pwm: duty cycle out of range [0, 1]")
	// ErrPoisoned is returned by every accessor of a DutyCycle whose update
	// function panicked while holding the lock.
	ErrPoisoned = errors.New("pwm: duty cycle store poisoned")
)

// DutyCycle is the shared duty cycle of one channel.
//
// The timing loop reads it once per iteration; any number of goroutines may
// write it at any time. A read never observes a partially written value.
type DutyCycle struct {
	mu     sync.RWMutex
	v      float64
	poison error
}

// NewDutyCycle returns a store holding v.
func NewDutyCycle(v float64) (*DutyCycle, error) {
	if err := checkDuty(v); err != nil {
		return nil, err
	}
	return &DutyCycle{v: v}, nil
}

func checkDuty(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %v", ErrDutyOutOfRange, v)
	}
	return nil
}

// Load returns the most recently stored value.
func (d *DutyCycle) Load() (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.poison != nil {
		return 0, d.poison
	}
	return d.v, nil
}

// Store replaces the value. Out-of-range values are rejected and leave the
// store unchanged.
func (d *DutyCycle) Store(v float64) error {
	if err := checkDuty(v); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.poison != nil {
		return d.poison
	}
	d.v = v
	return nil
}

// Update replaces the value with fn(current) while holding the write lock.
//
// If fn panics the store is poisoned: the panic is returned as an error and
// all later accessors fail with ErrPoisoned.
func (d *DutyCycle) Update(fn func(float64) float64) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.poison != nil {
		return d.poison
	}
	defer func() {
		if r := recover(); r != nil {
			d.poison = fmt.Errorf("%w: update panicked: %v", ErrPoisoned, r)
			err = d.poison
		}
	}()
	v := fn(d.v)
	if err := checkDuty(v); err != nil {
		return err
	}
	d.v = v
	return nil
}
