//go:build linux

package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openGPIOCDev requests the line as an output, initially low, using the Linux
// GPIO character device.
//
// A numeric Line is an offset on Chip. Anything else is a line name and is
// searched for on Chip first, then on every gpiochip under /dev (Pi 5 kernels
// can expose the header on a chip other than gpiochip0).
func openGPIOCDev(cfg LineConfig) (Output, error) {
	if offset, err := strconv.Atoi(cfg.Line); err == nil {
		if offset < 0 {
			return nil, fmt.Errorf("gpio: invalid line offset %d", offset)
		}
		chip := cfg.Chip
		if chip == "" {
			chip = "gpiochip0"
		}
		line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(cfg.Consumer))
		if err != nil {
			return nil, fmt.Errorf("gpio: request %s:%d: %w", chip, offset, err)
		}
		return &cdevLine{line: line}, nil
	}

	for _, chipPath := range chipCandidates(cfg.Chip) {
		chip, err := gpiocdev.NewChip(chipPath, gpiocdev.WithConsumer(cfg.Consumer))
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(cfg.Line)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &cdevLine{chip: chip, line: line}, nil
	}
	return nil, fmt.Errorf("gpio: line %q not found (or busy)", cfg.Line)
}

func chipCandidates(preferred string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if preferred != "" {
		if !strings.HasPrefix(preferred, "/") {
			preferred = filepath.Join("/dev", preferred)
		}
		add(preferred)
	}
	add("/dev/gpiochip0")
	add("/dev/gpiochip4")
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			add(filepath.Join("/dev", e.Name()))
		}
	}
	return out
}

type cdevLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (c *cdevLine) SetHigh() error { return c.set(1) }

func (c *cdevLine) SetLow() error { return c.set(0) }

func (c *cdevLine) set(v int) error {
	if c == nil || c.line == nil {
		return fmt.Errorf("gpio: line not open")
	}
	return c.line.SetValue(v)
}

func (c *cdevLine) Close() error {
	if c == nil || c.line == nil {
		return nil
	}
	// Revert to input so the pin is not left driven.
	_ = c.line.Reconfigure(gpiocdev.AsInput)
	err := c.line.Close()
	c.line = nil
	if c.chip != nil {
		_ = c.chip.Close()
		c.chip = nil
	}
	return err
}
