package pwm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"softpwm/internal/gpio"
)

var (
	ErrUnknownChannel = errors.New("pwm: unknown channel")
	ErrAlreadyStarted = errors.New("pwm: supervisor already started")
)

// ChannelSpec describes one channel to construct.
type ChannelSpec struct {
	Name        string
	Line        gpio.LineConfig
	FrequencyHz float64
	Duty        float64
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithClock sets the clock factory; it is called once per channel so that
// each loop may get its own clock.
func WithClock(fn func(name string) Clock) Option {
	return func(s *Supervisor) { s.clockFor = fn }
}

// WithTuning sets the thread tuning applied to every loop.
func WithTuning(t Tuning) Option {
	return func(s *Supervisor) { s.tuning = t }
}

// Supervisor owns every channel, launches one loop goroutine per channel and
// routes duty cycle writes by channel name.
//
// It never restarts a loop. A loop that fails stops only its own channel.
type Supervisor struct {
	log      zerolog.Logger
	clockFor func(name string) Clock
	tuning   Tuning

	channels []*Channel
	byName   map[string]*Channel

	mu      sync.Mutex
	started bool
	g       errgroup.Group
}

// NewSupervisor acquires an output for every spec and builds the channels.
//
// Construction is all-or-nothing: on the first failure every output already
// acquired is closed and the error is returned.
func NewSupervisor(specs []ChannelSpec, open gpio.Opener, opts ...Option) (*Supervisor, error) {
	s := &Supervisor{
		log:    zerolog.Nop(),
		byName: make(map[string]*Channel, len(specs)),
	}
	for _, o := range opts {
		o(s)
	}
	if open == nil {
		open = gpio.Open
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("pwm: no channels")
	}

	fail := func(err error) (*Supervisor, error) {
		for _, ch := range s.channels {
			if cerr := ch.out.Close(); cerr != nil {
				s.log.Warn().Err(cerr).Str("channel", ch.name).Msg("close output after failed startup")
			}
		}
		return nil, err
	}

	lines := make(map[string]string, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return fail(fmt.Errorf("pwm: channel name is required"))
		}
		if _, dup := s.byName[spec.Name]; dup {
			return fail(fmt.Errorf("pwm: duplicate channel %q", spec.Name))
		}
		// One loop per output line.
		if other, dup := lines[spec.Line.Key()]; dup {
			return fail(fmt.Errorf("pwm: channel %q: line %s already used by channel %q", spec.Name, spec.Line, other))
		}
		lines[spec.Line.Key()] = spec.Name
		// Frequency is checked before the line is acquired.
		if _, err := periodOf(spec.FrequencyHz); err != nil {
			return fail(fmt.Errorf("pwm: channel %q: %w", spec.Name, err))
		}
		out, err := open(spec.Line)
		if err != nil {
			return fail(fmt.Errorf("pwm: channel %q: open %s: %w", spec.Name, spec.Line, err))
		}
		ch, err := NewChannel(spec.Name, out, spec.FrequencyHz, spec.Duty)
		if err != nil {
			_ = out.Close()
			return fail(err)
		}
		s.channels = append(s.channels, ch)
		s.byName[ch.name] = ch
	}
	return s, nil
}

// Channels returns the channels in construction order.
func (s *Supervisor) Channels() []*Channel {
	out := make([]*Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

func (s *Supervisor) Channel(name string) (*Channel, bool) {
	ch, ok := s.byName[name]
	return ch, ok
}

// Duty returns the shared duty cycle store of the named channel.
func (s *Supervisor) Duty(name string) (*DutyCycle, error) {
	ch, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return ch.duty, nil
}

// SetDuty writes the duty cycle of the named channel. The loop applies it at
// its next iteration.
func (s *Supervisor) SetDuty(name string, d float64) error {
	duty, err := s.Duty(name)
	if err != nil {
		return err
	}
	if err := duty.Store(d); err != nil {
		return fmt.Errorf("pwm: channel %q: %w", name, err)
	}
	s.log.Debug().Str("channel", name).Float64("duty", d).Msg("duty cycle set")
	return nil
}

func (s *Supervisor) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch.Snapshot())
	}
	return out
}

// Start launches every channel's loop and returns without waiting.
// Loops run until ctx is done or they fail.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	for _, ch := range s.channels {
		ch := ch
		var clk Clock
		if s.clockFor != nil {
			clk = s.clockFor(ch.name)
		}
		loop := NewLoop(ch, clk, s.log, s.tuning)
		s.g.Go(func() error {
			return s.runChannel(ctx, ch, loop)
		})
	}
	s.log.Info().Int("channels", len(s.channels)).Msg("pwm channels started")
	return nil
}

func (s *Supervisor) runChannel(ctx context.Context, ch *Channel, loop *Loop) (err error) {
	log := s.log.With().Str("channel", ch.name).Logger()
	ch.markStarted(loop.clk.Now())
	log.Info().
		Float64("frequency_hz", ch.freqHz).
		Dur("period", ch.period).
		Msg("pwm loop running")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pwm: channel %q: loop panicked: %v", ch.name, r)
		}
		ch.markStopped(err)
		if err != nil {
			// Leave the line at its last level; nothing is retried.
			log.Error().Err(err).Msg("pwm loop stopped")
			return
		}
		if lerr := ch.out.SetLow(); lerr != nil {
			log.Warn().Err(lerr).Msg("drive output low on shutdown")
		}
		if cerr := ch.out.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close output")
		}
		log.Info().Uint64("iterations", ch.iterations.Load()).Msg("pwm loop stopped")
	}()

	return loop.Run(ctx)
}

// Wait blocks until every loop has returned and reports the first channel
// error. Only meaningful after Start.
func (s *Supervisor) Wait() error {
	return s.g.Wait()
}
