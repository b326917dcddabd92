package control

import "time"

// pid is a small PID controller producing a value clamped to [outMin, outMax].
//
// Not safe for concurrent use.
type pid struct {
	kp, ki, kd float64
	setpoint   float64
	outMin     float64
	outMax     float64

	integral  float64
	prevError float64
	havePrev  bool
}

func newPID(kp, ki, kd, setpoint float64) *pid {
	return &pid{kp: kp, ki: ki, kd: kd, setpoint: setpoint, outMin: 0, outMax: 1}
}

// update feeds one measurement taken dt after the previous one.
//
// Error is measurement - setpoint, so a reading above target drives the
// output up (more cooling).
func (p *pid) update(measurement float64, dt time.Duration) float64 {
	if dt <= 0 {
		return p.outMin
	}
	sec := dt.Seconds()
	err := measurement - p.setpoint

	derivative := 0.0
	if p.havePrev {
		derivative = (err - p.prevError) / sec
	}
	p.prevError = err
	p.havePrev = true

	next := p.integral + err*sec
	out := p.kp*err + p.ki*next + p.kd*derivative
	// Anti-windup: only integrate while the output is not saturated.
	if out > p.outMin && out < p.outMax {
		p.integral = next
	}
	switch {
	case out < p.outMin:
		out = p.outMin
	case out > p.outMax:
		out = p.outMax
	}
	return out
}
