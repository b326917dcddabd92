//go:build !linux

package gpio

import "fmt"

// Stub implementation for non-Linux platforms.
func openGPIOCDev(cfg LineConfig) (Output, error) {
	return nil, fmt.Errorf("gpio: gpiocdev unsupported on this platform")
}
