package synth

import (
	"fmt"
	"strings"

	"github.com/cbegin/patchbay-go/internal/engine"
)

// Delay is the time constant of the smoothing ramp, in seconds.
const Delay = 0.001

// Ramp selects how SetParam moves a parameter to its new value.
type Ramp int

const (
	// RampSmooth approaches the value exponentially from the given time.
	RampSmooth Ramp = iota
	// RampLinear interpolates linearly, arriving at the given time.
	RampLinear
	// RampExponential interpolates multiplicatively, arriving at the given time.
	RampExponential
)

func (r Ramp) String() string {
	switch r {
	case RampLinear:
		return "linear"
	case RampExponential:
		return "exponential"
	default:
		return "smooth"
	}
}

func ParseRamp(s string) (Ramp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "smooth", "target":
		return RampSmooth, nil
	case "linear", "lin":
		return RampLinear, nil
	case "exponential", "exp":
		return RampExponential, nil
	}
	return 0, fmt.Errorf("unknown ramp type %q", s)
}

// SetParam schedules a change to p. The last call wins from its own time
// forward: automation at or after t is replaced, while changes already
// scheduled before t are kept, so several calls can be queued ahead of the
// clock.
//
// Linear and exponential ramps arrive at value at t, starting from the last
// event scheduled before t, or from the current value at the current time
// when that event is already past. A t that is already past sets the value now. The
// smooth ramp holds at t and approaches value with time constant Delay.
func SetParam(p *engine.Param, value, t float64, ramp Ramp) error {
	if ramp == RampSmooth {
		p.CancelAndHoldAtTime(t)
		return p.SetTargetAtTime(value, t, Delay)
	}
	now := p.Context().CurrentTime()
	if t <= now {
		p.CancelAndHoldAtTime(now)
		return p.SetValueAtTime(value, now)
	}
	if p.LastEventBefore(t) >= now {
		p.CancelScheduledValues(t)
	} else {
		// Nothing pending before t: start from wherever the curve is now,
		// truncating any ramp in progress.
		p.CancelAndHoldAtTime(now)
	}
	if ramp == RampExponential {
		return p.ExponentialRampToValueAtTime(value, t)
	}
	return p.LinearRampToValueAtTime(value, t)
}
