package gpio

import (
	"fmt"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	periphInitOnce sync.Once
	periphInitErr  error
)

func periphInit() error {
	periphInitOnce.Do(func() {
		_, periphInitErr = host.Init()
	})
	return periphInitErr
}

// openPeriph looks the pin up in the periph.io registry by name or number
// (e.g. "GPIO17" or "17") and drives it low.
func openPeriph(cfg LineConfig) (Output, error) {
	if err := periphInit(); err != nil {
		return nil, fmt.Errorf("gpio: periph host init: %w", err)
	}
	pin := gpioreg.ByName(cfg.Line)
	if pin == nil {
		return nil, fmt.Errorf("gpio: periph pin %q not found", cfg.Line)
	}
	if err := pin.Out(pgpio.Low); err != nil {
		return nil, fmt.Errorf("gpio: periph pin %q as output: %w", cfg.Line, err)
	}
	return &periphPin{pin: pin}, nil
}

type periphPin struct {
	pin pgpio.PinIO
}

func (p *periphPin) SetHigh() error { return p.pin.Out(pgpio.High) }

func (p *periphPin) SetLow() error { return p.pin.Out(pgpio.Low) }

func (p *periphPin) Close() error {
	return p.pin.Halt()
}
