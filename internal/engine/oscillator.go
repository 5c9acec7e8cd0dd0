package engine

import (
	"math"
	"math/rand/v2"

	"github.com/cbegin/patchbay-go/internal/wave"
)

const maxFloat = math.MaxFloat64

// Oscillator is a periodic source. It runs from creation; gate it with a Gain.
type Oscillator struct {
	node
	typ       wave.Type
	phasor    wave.Phasor
	frequency *Param
	detune    *Param
}

func (c *Context) NewOscillator(typ wave.Type, freq float64) *Oscillator {
	nyquist := float64(c.sampleRate) / 2
	o := &Oscillator{typ: typ}
	o.init(c, o, 0)
	o.frequency = newParam(c, "frequency", freq, -nyquist, nyquist)
	o.detune = newParam(c, "detune", 0, -maxFloat, maxFloat)
	return o
}

// Frequency is in Hz.
func (o *Oscillator) Frequency() *Param { return o.frequency }

// Detune is in cents.
func (o *Oscillator) Detune() *Param { return o.detune }

func (o *Oscillator) Type() wave.Type {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.typ
}

func (o *Oscillator) SetType(t wave.Type) {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	o.typ = t
}

func (o *Oscillator) process(tk tick, _ float64) float64 {
	f := o.frequency.at(tk)
	if d := o.detune.at(tk); d != 0 {
		f *= math.Exp2(d / 1200)
	}
	return wave.Shape(o.typ, o.phasor.Advance(f, float64(o.ctx.sampleRate)))
}

// Noise is a white noise source.
type Noise struct {
	node
	rng *rand.Rand
}

func (c *Context) NewNoise(seed uint64) *Noise {
	n := &Noise{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	n.init(c, n, 0)
	return n
}

func (n *Noise) process(tick, float64) float64 {
	return 2*n.rng.Float64() - 1
}

// Gain scales its input.
type Gain struct {
	node
	gain *Param
}

func (c *Context) NewGain(gain float64) *Gain {
	g := &Gain{}
	g.init(c, g, -1)
	g.gain = newParam(c, "gain", gain, -maxFloat, maxFloat)
	return g
}

func (g *Gain) Gain() *Param { return g.gain }

func (g *Gain) process(tk tick, in float64) float64 {
	return in * g.gain.at(tk)
}
