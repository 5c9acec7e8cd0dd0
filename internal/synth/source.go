package synth

import (
	"sync"

	"github.com/cbegin/patchbay-go/internal/engine"
)

type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// SourcePatch produces signal from nothing and therefore has a play/stop
// lifecycle. Its output passes through a switch gain that is only ever moved
// by a smoothing ramp, so starting and stopping never clicks.
type SourcePatch interface {
	Patch
	Play(time float64) error
	Stop(time float64) error
	State() State
}

type source struct {
	patch
	sw      *engine.Gain
	mu      sync.Mutex
	state   State   // target of the last scheduled transition
	since   float64 // when that transition takes effect
	onStart func(time float64)
}

// newSource routes gen through a closed switch gain.
func newSource(s *Synth, kind Kind, gen engine.Node) (*source, error) {
	sw := s.ctx.NewGain(0)
	src := &source{
		patch: patch{kind: kind, synth: s, out: []engine.Node{sw}},
		sw:    sw,
	}
	if gen != nil {
		if err := gen.Connect(sw); err != nil {
			return nil, err
		}
	}
	return src, nil
}

// Play opens the switch at time. It does nothing if the switch is already
// scheduled to be open at or before time; an earlier Play pulls a pending
// one forward.
func (s *source) Play(time float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.transition(Playing, time) {
		return nil
	}
	if err := SetParam(s.sw.Gain(), 1, time, RampSmooth); err != nil {
		return err
	}
	s.state, s.since = Playing, time
	if s.onStart != nil {
		s.onStart(time)
	}
	return nil
}

// Stop closes the switch at time, with the same rules as Play: a Stop
// earlier than a pending one releases the patch sooner.
func (s *source) Stop(time float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.transition(Idle, time) {
		return nil
	}
	if err := SetParam(s.sw.Gain(), 0, time, RampSmooth); err != nil {
		return err
	}
	s.state, s.since = Idle, time
	return nil
}

// transition reports whether moving to st at time changes the timeline.
func (s *source) transition(st State, time float64) bool {
	return s.state != st || time < s.since
}

func (s *source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Switch exposes the gate gain parameter.
func (s *source) Switch() *engine.Param { return s.sw.Gain() }
