package wave

import (
	"fmt"
	"math"
	"strings"
)

// Type selects an oscillator waveform.
type Type int

const (
	Sine Type = iota
	Square
	Sawtooth
	Triangle
)

var typeNames = [...]string{"sine", "square", "sawtooth", "triangle"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("wave.Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType accepts the canonical names plus "sin", "sqr", "saw" and "tri".
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine", "sin":
		return Sine, nil
	case "square", "sqr":
		return Square, nil
	case "sawtooth", "saw":
		return Sawtooth, nil
	case "triangle", "tri":
		return Triangle, nil
	}
	return 0, fmt.Errorf("unknown waveform %q", name)
}

// Shape returns the waveform value in [-1, 1] at phase [0, 1).
func Shape(t Type, phase float64) float64 {
	switch t {
	case Square:
		if phase < 0.5 {
			return 1.0
		}
		return -1.0
	case Sawtooth:
		return 2.0*phase - 1.0
	case Triangle:
		if phase < 0.5 {
			return 4.0*phase - 1.0
		}
		return 3.0 - 4.0*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// Phasor is a phase accumulator in cycles.
type Phasor struct {
	phase float64 // current phase [0, 1)
}

// Advance returns the current phase and steps it by freq/sampleRate.
// Negative frequencies run the phase backwards.
func (p *Phasor) Advance(freq, sampleRate float64) float64 {
	cur := p.phase
	if sampleRate == 0 {
		return cur
	}
	p.phase += freq / sampleRate
	p.phase -= math.Floor(p.phase)
	return cur
}

// Phase returns the current phase without advancing.
func (p *Phasor) Phase() float64 { return p.phase }

// Reset zeros the phase.
func (p *Phasor) Reset() { p.phase = 0 }
