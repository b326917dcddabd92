//go:build !linux

package pwm

import "fmt"

func tuneThread(t Tuning) error {
	return fmt.Errorf("pwm: thread tuning unsupported on this platform")
}
