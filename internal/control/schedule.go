package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Step writes Duty to Channel once, After the schedule starts.
type Step struct {
	After   time.Duration
	Channel string
	Duty    float64
}

// Schedule runs a fixed list of one-shot duty cycle writes.
type Schedule struct {
	s      gocron.Scheduler
	target DutySetter
	log    zerolog.Logger
}

// StartSchedule registers every step as a one-time job relative to now and
// starts the scheduler. Failed writes are logged; there is no retry.
func StartSchedule(target DutySetter, steps []Step, log zerolog.Logger) (*Schedule, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("control: new scheduler: %w", err)
	}
	sc := &Schedule{s: s, target: target, log: log}

	start := time.Now()
	for i, st := range steps {
		if err := sc.add(i, st, start); err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("control: schedule step %d: %w", i, err)
		}
	}
	s.Start()
	log.Debug().Int("steps", len(steps)).Msg("duty schedule started")
	return sc, nil
}

// add registers st as a one-time job at start+After. A step that is already
// due by the time it is registered runs at once.
func (sc *Schedule) add(i int, st Step, start time.Time) error {
	task := gocron.NewTask(func() { sc.apply(st) })
	name := gocron.WithName(fmt.Sprintf("step-%d-%s", i, st.Channel))
	if st.After > 0 {
		_, err := sc.s.NewJob(gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(start.Add(st.After))), task, name)
		if !errors.Is(err, gocron.ErrOneTimeJobStartDateTimePast) {
			return err
		}
	}
	_, err := sc.s.NewJob(gocron.OneTimeJob(gocron.OneTimeJobStartImmediately()), task, name)
	return err
}

func (sc *Schedule) apply(st Step) {
	if err := sc.target.SetDuty(st.Channel, st.Duty); err != nil {
		sc.log.Error().Err(err).Str("channel", st.Channel).Float64("duty", st.Duty).Msg("scheduled duty write failed")
		return
	}
	sc.log.Info().Str("channel", st.Channel).Float64("duty", st.Duty).Dur("after", st.After).Msg("scheduled duty applied")
}

// Stop shuts the scheduler down; pending steps never run.
func (sc *Schedule) Stop() error {
	return sc.s.Shutdown()
}
