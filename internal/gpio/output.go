// Package gpio provides the digital output lines driven by the software PWM
// loops. A line is acquired once per channel and then owned by that channel.
package gpio

import (
	"fmt"
	"strings"
)

// Output is one digital output line.
//
// SetHigh and SetLow are idempotent and are expected to complete in a short,
// bounded time relative to the PWM period. Close releases the line; callers
// drive it to a safe level first.
type Output interface {
	SetHigh() error
	SetLow() error
	Close() error
}

const (
	BackendGPIOCDev = "gpiocdev"
	BackendPeriph   = "periph"
	BackendSim      = "sim"
)

// LineConfig identifies one line on one backend.
type LineConfig struct {
	Backend string
	// Chip is the gpiocdev chip name or path (e.g. "gpiochip0"). Ignored by
	// the other backends.
	Chip string
	// Line is a line offset ("17") or a line/pin name ("GPIO17").
	Line string
	// Consumer is the label attached to the line request where supported.
	Consumer string
}

func (c LineConfig) String() string {
	if c.Chip != "" {
		return fmt.Sprintf("%s:%s:%s", c.Backend, c.Chip, c.Line)
	}
	return fmt.Sprintf("%s:%s", c.Backend, c.Line)
}

// Key identifies the physical line cfg refers to. Two configs with the same
// key would drive the same pin.
func (c LineConfig) Key() string {
	backend := strings.ToLower(strings.TrimSpace(c.Backend))
	if backend == "" {
		backend = BackendGPIOCDev
	}
	line := strings.TrimSpace(c.Line)
	if backend == BackendGPIOCDev {
		return backend + ":" + strings.TrimSpace(c.Chip) + ":" + line
	}
	return backend + ":" + line
}

// Opener acquires an output line.
type Opener func(LineConfig) (Output, error)

var (
	openGPIOCDevFn = openGPIOCDev
	openPeriphFn   = openPeriph
)

// Open acquires the line described by cfg on its backend.
func Open(cfg LineConfig) (Output, error) {
	if strings.TrimSpace(cfg.Line) == "" {
		return nil, fmt.Errorf("gpio: line is required")
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "softpwm"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendGPIOCDev, "":
		return openGPIOCDevFn(cfg)
	case BackendPeriph:
		return openPeriphFn(cfg)
	case BackendSim:
		return NewSim(cfg.Line, nil), nil
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", cfg.Backend)
	}
}
