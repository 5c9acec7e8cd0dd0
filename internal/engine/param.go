package engine

import (
	"fmt"
	"math"
	"sort"
)

type eventKind int

const (
	eventSetValue eventKind = iota
	eventLinearRamp
	eventExpRamp
	eventSetTarget
)

func (k eventKind) isRamp() bool {
	return k == eventLinearRamp || k == eventExpRamp
}

type automationEvent struct {
	kind         eventKind
	time         float64
	value        float64
	timeConstant float64 // setTarget only
}

// curveState is the automation walk position: the value and time a following
// ramp starts from, plus the active setTarget curve if any.
type curveState struct {
	value  float64
	time   float64
	target *automationEvent
}

func (s *curveState) apply(ev automationEvent) {
	switch ev.kind {
	case eventSetTarget:
		if s.target != nil {
			s.value = s.target.eval(s.value, ev.time)
		}
		s.target = &ev
	default:
		s.value = ev.value
		s.target = nil
	}
	s.time = ev.time
}

func (s *curveState) valueAt(t float64) float64 {
	if s.target != nil {
		return s.target.eval(s.value, t)
	}
	return s.value
}

func (ev *automationEvent) eval(from, t float64) float64 {
	if t <= ev.time {
		return from
	}
	return ev.value + (from-ev.value)*math.Exp(-(t-ev.time)/ev.timeConstant)
}

func rampValue(kind eventKind, t0, v0, t1, v1, t float64) float64 {
	if t1 <= t0 {
		return v1
	}
	frac := (t - t0) / (t1 - t0)
	if kind == eventExpRamp {
		if v0*v1 <= 0 {
			return v0
		}
		return v0 * math.Pow(v1/v0, frac)
	}
	return v0 + (v1-v0)*frac
}

// Param is an automatable node parameter. Its value at any instant is the
// automation timeline evaluated at that time plus the summed output of any
// nodes connected to it, clamped to the parameter range.
type Param struct {
	ctx          *Context
	name         string
	defaultValue float64
	min, max     float64
	origin       curveState
	events       []automationEvent
	inputs       []Node
}

func newParam(ctx *Context, name string, def, min, max float64) *Param {
	p := &Param{
		ctx:          ctx,
		name:         name,
		defaultValue: def,
		min:          min,
		max:          max,
		origin:       curveState{value: def},
	}
	ctx.params = append(ctx.params, p)
	return p
}

func (p *Param) Name() string          { return p.name }
func (p *Param) Context() *Context     { return p.ctx }
func (p *Param) DefaultValue() float64 { return p.defaultValue }

// Range returns the clamp bounds applied to the computed value.
func (p *Param) Range() (min, max float64) { return p.min, p.max }

func (p *Param) String() string {
	return fmt.Sprintf("param %s", p.name)
}

// Value returns the automation value at the context's current time.
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.valueAt(p.ctx.CurrentTime())
}

// SetValue drops all automation and sets the value from now on.
func (p *Param) SetValue(v float64) error {
	if !finite(v) {
		return fmt.Errorf("%s: %w: %v", p.name, ErrInvalidValue, v)
	}
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.events = nil
	p.origin = curveState{value: v, time: p.ctx.CurrentTime()}
	return nil
}

// ValueAt evaluates the automation timeline at t, ignoring audio-rate inputs.
func (p *Param) ValueAt(t float64) float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.valueAt(t)
}

func (p *Param) valueAt(t float64) float64 {
	s := p.origin
	for _, ev := range p.events {
		if ev.time > t {
			if ev.kind.isRamp() {
				return rampValue(ev.kind, s.time, s.value, ev.time, ev.value, t)
			}
			break
		}
		s.apply(ev)
	}
	return s.valueAt(t)
}

func (p *Param) SetValueAtTime(v, t float64) error {
	return p.schedule(automationEvent{kind: eventSetValue, time: t, value: v})
}

func (p *Param) LinearRampToValueAtTime(v, t float64) error {
	return p.schedule(automationEvent{kind: eventLinearRamp, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps multiplicatively; v must be non-zero.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) error {
	if v == 0 {
		return fmt.Errorf("%s: %w: exponential ramp to zero", p.name, ErrInvalidValue)
	}
	return p.schedule(automationEvent{kind: eventExpRamp, time: t, value: v})
}

// SetTargetAtTime approaches v exponentially from t with time constant tau.
func (p *Param) SetTargetAtTime(v, t, tau float64) error {
	if !(tau > 0) || math.IsInf(tau, 1) {
		return fmt.Errorf("%s: %w: time constant %v", p.name, ErrInvalidValue, tau)
	}
	return p.schedule(automationEvent{kind: eventSetTarget, time: t, value: v, timeConstant: tau})
}

func (p *Param) schedule(ev automationEvent) error {
	if !finite(ev.value) || !finite(ev.time) || ev.time < 0 {
		return fmt.Errorf("%s: %w: value %v at %v", p.name, ErrInvalidValue, ev.value, ev.time)
	}
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.insert(ev)
	return nil
}

// insert keeps events sorted by time; equal times keep insertion order.
func (p *Param) insert(ev automationEvent) {
	if ev.time < p.origin.time {
		ev.time = p.origin.time
	}
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > ev.time })
	p.events = append(p.events, automationEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
}

// CancelScheduledValues removes every event at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.events = p.events[:p.firstAtOrAfter(t)]
}

// CancelAndHoldAtTime removes every event at or after t and pins the value
// to what the timeline produced at t. A ramp in progress at t is truncated
// so the curve before t is unchanged.
func (p *Param) CancelAndHoldAtTime(t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.cancelAndHold(t)
}

func (p *Param) cancelAndHold(t float64) {
	if t < p.origin.time {
		t = p.origin.time
	}
	held := p.valueAt(t)
	i := p.firstAtOrAfter(t)
	hold := automationEvent{kind: eventSetValue, time: t, value: held}
	if i < len(p.events) && p.events[i].kind.isRamp() && p.events[i].time > t {
		hold.kind = p.events[i].kind
	}
	p.events = append(p.events[:i], hold)
}

func (p *Param) firstAtOrAfter(t float64) int {
	return sort.Search(len(p.events), func(i int) bool { return p.events[i].time >= t })
}

// compact folds events that can no longer affect values at or after t into
// the walk origin.
func (p *Param) compact(t float64) {
	n := 0
	for n < len(p.events) && p.events[n].time <= t {
		p.origin.apply(p.events[n])
		n++
	}
	if n > 0 {
		p.events = append(p.events[:0], p.events[n:]...)
	}
}

// LastEventBefore returns the time of the last scheduled event earlier than
// t, or the time the current value took effect if there is none.
func (p *Param) LastEventBefore(t float64) float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	if i := p.firstAtOrAfter(t); i > 0 {
		return p.events[i-1].time
	}
	return p.origin.time
}

// Events returns the number of pending automation events.
func (p *Param) Events() int {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return len(p.events)
}

func (p *Param) at(tk tick) float64 {
	v := p.valueAt(tk.t)
	for _, in := range p.inputs {
		v += in.core().pull(tk)
	}
	if v < p.min {
		return p.min
	}
	if v > p.max {
		return p.max
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
