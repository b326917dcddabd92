//go:build linux

package pwm

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// tuneThread adjusts the calling OS thread. The goroutine must already be
// locked to its thread.
func tuneThread(t Tuning) error {
	tid := unix.Gettid()
	var errs []error
	if t.Nice != 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, tid, t.Nice); err != nil {
			errs = append(errs, fmt.Errorf("setpriority %d: %w", t.Nice, err))
		}
	}
	if t.CPU >= 0 {
		var set unix.CPUSet
		set.Zero()
		set.Set(t.CPU)
		if err := unix.SchedSetaffinity(tid, &set); err != nil {
			errs = append(errs, fmt.Errorf("pin to cpu %d: %w", t.CPU, err))
		}
	}
	return errors.Join(errs...)
}
