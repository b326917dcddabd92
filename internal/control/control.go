// Package control writes channel duty cycles from outside the timing loops:
// fixed-delay schedules and a watched duty file.
package control

// DutySetter routes a duty cycle write to a channel by name.
type DutySetter interface {
	SetDuty(channel string, duty float64) error
}
