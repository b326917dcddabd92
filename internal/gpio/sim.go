package gpio

import (
	"fmt"
	"sync"
	"time"
)

// Transition is one recorded level change on a simulated line.
type Transition struct {
	At   time.Time
	High bool
}

// Sim is an in-memory output line. It records every level change so that
// tests (and hardware-free runs) can inspect the generated waveform.
//
// Safe for concurrent use.
type Sim struct {
	name string
	now  func() time.Time

	mu     sync.Mutex
	high   bool
	closed bool
	sets   int
	trans  []Transition
}

// NewSim returns a simulated line starting low. now supplies transition
// timestamps; nil means time.Now.
func NewSim(name string, now func() time.Time) *Sim {
	if now == nil {
		now = time.Now
	}
	return &Sim{name: name, now: now}
}

func (s *Sim) Name() string { return s.name }

func (s *Sim) SetHigh() error { return s.set(true) }

func (s *Sim) SetLow() error { return s.set(false) }

func (s *Sim) set(high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("gpio: sim line %q closed", s.name)
	}
	s.sets++
	if high == s.high && len(s.trans) > 0 {
		return nil
	}
	s.high = high
	s.trans = append(s.trans, Transition{At: s.now(), High: high})
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// High reports the current level.
func (s *Sim) High() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.high
}

func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Sets returns the number of SetHigh/SetLow calls, including no-op ones.
func (s *Sim) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

// Transitions returns a copy of the recorded level changes.
func (s *Sim) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.trans))
	copy(out, s.trans)
	return out
}

// EverHigh reports whether the line was ever driven high.
func (s *Sim) EverHigh() bool {
	for _, t := range s.Transitions() {
		if t.High {
			return true
		}
	}
	return false
}

// HighTime returns how long the line was high within [from, to).
func (s *Sim) HighTime(from, to time.Time) time.Duration {
	trans := s.Transitions()
	var total time.Duration
	high := false
	at := from
	for _, t := range trans {
		if !t.At.After(from) {
			high = t.High
			continue
		}
		if !t.At.Before(to) {
			break
		}
		if high {
			total += t.At.Sub(at)
		}
		high = t.High
		at = t.At
	}
	if high {
		total += to.Sub(at)
	}
	return total
}
