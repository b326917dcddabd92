package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"softpwm/internal/gpio"
)

type Config struct {
	Log            LogConfig       `yaml:"log"`
	Backend        string          `yaml:"backend"`
	Chip           string          `yaml:"chip"`
	Realtime       RealtimeConfig  `yaml:"realtime"`
	StatusInterval time.Duration   `yaml:"status_interval"`
	Channels       []ChannelConfig `yaml:"channels"`
	Schedule       []StepConfig    `yaml:"schedule"`
	Control        ControlConfig   `yaml:"control"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RealtimeConfig struct {
	Enable bool `yaml:"enable"`
	// Nice is applied to each loop thread; negative raises priority.
	Nice int `yaml:"nice"`
	// CPU pins loop threads to one CPU; -1 disables pinning.
	CPU *int `yaml:"cpu"`
}

type ChannelConfig struct {
	Name string `yaml:"name"`
	// Backend and Chip override the top-level defaults for this channel.
	Backend     string  `yaml:"backend"`
	Chip        string  `yaml:"chip"`
	Line        string  `yaml:"line"`
	FrequencyHz float64 `yaml:"frequency_hz"`
	Duty        float64 `yaml:"duty"`
}

// StepConfig is one scheduled duty cycle write, After the process starts.
type StepConfig struct {
	After   time.Duration `yaml:"after"`
	Channel string        `yaml:"channel"`
	Duty    float64       `yaml:"duty"`
}

type ControlConfig struct {
	DutyFile string        `yaml:"duty_file"`
	Thermal  ThermalConfig `yaml:"thermal"`
}

// ThermalConfig drives one channel from a temperature sensor (fan control).
// TargetC defaults to 50 when unset; an explicit 0 is kept.
type ThermalConfig struct {
	Enable   bool          `yaml:"enable"`
	Channel  string        `yaml:"channel"`
	TargetC  *float64      `yaml:"target_c"`
	MinDuty  float64       `yaml:"min_duty"`
	Interval time.Duration `yaml:"interval"`
	TempPath string        `yaml:"temp_path"`
}

const DefaultFrequencyHz = 1000

var validBackends = map[string]bool{"gpiocdev": true, "periph": true, "sim": true}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		return Config{}, fmt.Errorf("log.format must be 'console' or 'json'")
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = "gpiocdev"
	}
	if !validBackends[cfg.Backend] {
		return Config{}, fmt.Errorf("backend %q is not one of gpiocdev, periph, sim", cfg.Backend)
	}
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}

	if cfg.Realtime.CPU == nil {
		none := -1
		cfg.Realtime.CPU = &none
	}
	if cfg.StatusInterval < 0 {
		return Config{}, fmt.Errorf("status_interval must be >= 0")
	}

	if len(cfg.Channels) == 0 {
		return Config{}, fmt.Errorf("at least one channel is required")
	}
	names := make(map[string]bool, len(cfg.Channels))
	lines := make(map[string]int, len(cfg.Channels))
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if ch.Name == "" {
			ch.Name = fmt.Sprintf("ch%d", i)
		}
		if names[ch.Name] {
			return Config{}, fmt.Errorf("channels[%d].name %q is duplicated", i, ch.Name)
		}
		names[ch.Name] = true

		ch.Backend = strings.ToLower(strings.TrimSpace(ch.Backend))
		if ch.Backend == "" {
			ch.Backend = cfg.Backend
		}
		if !validBackends[ch.Backend] {
			return Config{}, fmt.Errorf("channels[%d].backend %q is not one of gpiocdev, periph, sim", i, ch.Backend)
		}
		if ch.Chip == "" {
			ch.Chip = cfg.Chip
		}
		if strings.TrimSpace(ch.Line) == "" {
			return Config{}, fmt.Errorf("channels[%d].line is required", i)
		}
		key := gpio.LineConfig{Backend: ch.Backend, Chip: ch.Chip, Line: ch.Line}.Key()
		if j, dup := lines[key]; dup {
			return Config{}, fmt.Errorf("channels[%d].line %q is already used by channels[%d]", i, ch.Line, j)
		}
		lines[key] = i
		if ch.FrequencyHz == 0 {
			ch.FrequencyHz = DefaultFrequencyHz
		}
		if ch.FrequencyHz < 0 || math.IsInf(ch.FrequencyHz, 0) || math.IsNaN(ch.FrequencyHz) {
			return Config{}, fmt.Errorf("channels[%d].frequency_hz must be > 0", i)
		}
		if !validDuty(ch.Duty) {
			return Config{}, fmt.Errorf("channels[%d].duty must be within [0, 1]", i)
		}
	}

	for i, st := range cfg.Schedule {
		if st.After < 0 {
			return Config{}, fmt.Errorf("schedule[%d].after must be >= 0", i)
		}
		if !names[st.Channel] {
			return Config{}, fmt.Errorf("schedule[%d].channel %q is not a configured channel", i, st.Channel)
		}
		if !validDuty(st.Duty) {
			return Config{}, fmt.Errorf("schedule[%d].duty must be within [0, 1]", i)
		}
	}

	if th := &cfg.Control.Thermal; th.Enable {
		if !names[th.Channel] {
			return Config{}, fmt.Errorf("control.thermal.channel %q is not a configured channel", th.Channel)
		}
		if th.TargetC == nil {
			target := 50.0
			th.TargetC = &target
		}
		if th.Interval <= 0 {
			th.Interval = 5 * time.Second
		}
		if !validDuty(th.MinDuty) {
			return Config{}, fmt.Errorf("control.thermal.min_duty must be within [0, 1]")
		}
	}

	return cfg, nil
}

func validDuty(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
