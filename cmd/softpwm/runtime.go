package main

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"softpwm/internal/config"
	"softpwm/internal/control"
	"softpwm/internal/gpio"
	"softpwm/internal/pwm"
)

// notifyFn reports service state to systemd. Without NOTIFY_SOCKET it is a
// no-op.
var notifyFn = func(state string) (bool, error) {
	return daemon.SdNotify(false, state)
}

func channelSpecs(cfg config.Config) []pwm.ChannelSpec {
	specs := make([]pwm.ChannelSpec, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		specs = append(specs, pwm.ChannelSpec{
			Name: ch.Name,
			Line: gpio.LineConfig{
				Backend: ch.Backend,
				Chip:    ch.Chip,
				Line:    ch.Line,
			},
			FrequencyHz: ch.FrequencyHz,
			Duty:        ch.Duty,
		})
	}
	return specs
}

func scheduleSteps(cfg config.Config) []control.Step {
	steps := make([]control.Step, 0, len(cfg.Schedule))
	for _, st := range cfg.Schedule {
		steps = append(steps, control.Step{After: st.After, Channel: st.Channel, Duty: st.Duty})
	}
	return steps
}

func tuning(cfg config.Config) pwm.Tuning {
	t := pwm.Tuning{Enable: cfg.Realtime.Enable, Nice: cfg.Realtime.Nice, CPU: -1}
	if cfg.Realtime.CPU != nil {
		t.CPU = *cfg.Realtime.CPU
	}
	return t
}

// run builds every channel, starts the loops and the control surfaces, and
// blocks until ctx is done. It returns a startup error, or the first channel
// error once everything has stopped.
func run(ctx context.Context, cfg config.Config, log zerolog.Logger, open gpio.Opener) error {
	sup, err := pwm.NewSupervisor(channelSpecs(cfg), open,
		pwm.WithLogger(log),
		pwm.WithTuning(tuning(cfg)),
	)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().Int("channels", len(cfg.Channels)).Str("backend", cfg.Backend).Msg("softpwm starting")
	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	if len(cfg.Schedule) > 0 {
		sched, err := control.StartSchedule(sup, scheduleSteps(cfg), log)
		if err != nil {
			cancel()
			_ = sup.Wait()
			return fmt.Errorf("startup: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	if cfg.Control.DutyFile != "" {
		w := control.NewFileWatcher(cfg.Control.DutyFile, sup, log)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error().Err(err).Msg("duty file watcher stopped")
			}
		}()
	}

	if th := cfg.Control.Thermal; th.Enable {
		thermal := control.NewThermal(control.ThermalConfig{
			Channel:  th.Channel,
			TargetC:  *th.TargetC,
			MinDuty:  th.MinDuty,
			Interval: th.Interval,
			TempPath: th.TempPath,
		}, sup, log)
		go func() { _ = thermal.Run(ctx) }()
	}

	if cfg.StatusInterval > 0 {
		go reportStatus(ctx, sup, cfg.StatusInterval, log)
	}

	if _, err := notifyFn(daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("systemd notify failed")
	}

	<-ctx.Done()
	log.Info().Msg("softpwm stopping")
	_, _ = notifyFn(daemon.SdNotifyStopping)
	return sup.Wait()
}

func reportStatus(ctx context.Context, sup *pwm.Supervisor, every time.Duration, log zerolog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, s := range sup.Snapshots() {
				ev := log.Info()
				if !s.Running {
					ev = log.Warn().Str("last_error", s.LastError)
				}
				ev.Str("channel", s.Name).
					Float64("duty", s.Duty).
					Uint64("iterations", s.Iterations).
					Uint64("overruns", s.Overruns).
					Dur("max_overrun", s.MaxOverrun).
					Bool("running", s.Running).
					Msg("channel status")
			}
		}
	}
}
