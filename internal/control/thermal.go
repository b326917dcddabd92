package control

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultTempPath = "/sys/class/thermal/thermal_zone0/temp"

// ThermalConfig drives one channel (typically a fan) from a temperature
// reading through a PID controller. TargetC is used as given, including 0.
type ThermalConfig struct {
	Channel  string
	TargetC  float64
	MinDuty  float64
	Interval time.Duration
	TempPath string
}

// Thermal periodically maps temperature to a duty cycle in [MinDuty, 1].
type Thermal struct {
	cfg    ThermalConfig
	target DutySetter
	log    zerolog.Logger
	pid    *pid

	readTemp func() (float64, error)
}

func NewThermal(cfg ThermalConfig, target DutySetter, log zerolog.Logger) *Thermal {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.TempPath == "" {
		cfg.TempPath = DefaultTempPath
	}
	t := &Thermal{
		cfg:    cfg,
		target: target,
		log:    log.With().Str("channel", cfg.Channel).Logger(),
		pid:    newPID(0.05, 0.01, 0.02, cfg.TargetC),
	}
	t.readTemp = func() (float64, error) { return readTempC(t.cfg.TempPath) }
	return t
}

// Run updates the duty cycle every interval until ctx is done. An unreadable
// sensor drives the channel to full duty.
func (t *Thermal) Run(ctx context.Context) error {
	tick := time.NewTicker(t.cfg.Interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			t.step()
		}
	}
}

func (t *Thermal) step() {
	tempC, err := t.readTemp()
	if err != nil {
		t.log.Warn().Err(err).Msg("temperature read failed; forcing full duty")
		t.set(1)
		return
	}
	out := t.pid.update(tempC, t.cfg.Interval)
	t.set(t.scale(out))
	t.log.Debug().Float64("temp_c", tempC).Float64("pid", out).Msg("thermal update")
}

// scale maps a controller output in [0, 1] onto [MinDuty, 1]; zero stays off.
func (t *Thermal) scale(out float64) float64 {
	if out <= 0 {
		return 0
	}
	return t.cfg.MinDuty + out*(1-t.cfg.MinDuty)
}

func (t *Thermal) set(d float64) {
	if err := t.target.SetDuty(t.cfg.Channel, d); err != nil {
		t.log.Error().Err(err).Float64("duty", d).Msg("thermal duty write failed")
	}
}

// parseTempC reads a thermal zone value. Linux reports milli-degrees; some
// boards report whole degrees.
func parseTempC(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("thermal: empty sensor reading")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("thermal: sensor reading %q: %w", s, err)
	}
	if v > 1000 || v < -1000 {
		return v / 1000, nil
	}
	return v, nil
}

func readTempC(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("thermal: read sensor: %w", err)
	}
	return parseTempC(string(b))
}
