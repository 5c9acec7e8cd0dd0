package engine

import (
	"fmt"
	"math"
	"strings"
)

type FilterType int

const (
	Lowpass FilterType = iota
	Highpass
	Bandpass
	Notch
	Peaking
)

func ParseFilterType(name string) (FilterType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lowpass", "lp":
		return Lowpass, nil
	case "highpass", "hp":
		return Highpass, nil
	case "bandpass", "bp":
		return Bandpass, nil
	case "notch":
		return Notch, nil
	case "peaking", "peak":
		return Peaking, nil
	}
	return 0, fmt.Errorf("unknown filter type %q", name)
}

// BiquadFilter is a second order IIR filter with coefficients from the
// audio EQ cookbook (https://www.w3.org/2011/audio/audio-eq-cookbook.html).
type BiquadFilter struct {
	node
	typ       FilterType
	frequency *Param
	q         *Param
	gain      *Param

	// cached coefficient inputs
	lastF, lastQ, lastG float64
	b0, b1, b2, a1, a2  float64

	x1, x2, y1, y2 float64
}

func (c *Context) NewBiquadFilter(typ FilterType, freq, q float64) *BiquadFilter {
	nyquist := float64(c.sampleRate) / 2
	f := &BiquadFilter{typ: typ, lastF: math.NaN()}
	f.init(c, f, -1)
	f.frequency = newParam(c, "frequency", freq, 10, nyquist)
	f.q = newParam(c, "Q", q, 0.0001, 1000)
	f.gain = newParam(c, "gain", 0, -40, 40)
	return f
}

func (f *BiquadFilter) Frequency() *Param { return f.frequency }
func (f *BiquadFilter) Q() *Param         { return f.q }

// Gain is in dB and only affects peaking filters.
func (f *BiquadFilter) Gain() *Param { return f.gain }

func (f *BiquadFilter) Type() FilterType {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	return f.typ
}

func (f *BiquadFilter) SetType(t FilterType) {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	f.typ = t
	f.lastF = math.NaN()
}

func (f *BiquadFilter) process(tk tick, in float64) float64 {
	freq, q, g := f.frequency.at(tk), f.q.at(tk), f.gain.at(tk)
	if freq != f.lastF || q != f.lastQ || g != f.lastG {
		f.coefficients(freq, q, g)
		f.lastF, f.lastQ, f.lastG = freq, q, g
	}
	out := f.b0*in + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, in
	f.y2, f.y1 = f.y1, out
	return out
}

func (f *BiquadFilter) coefficients(freq, q, gainDB float64) {
	omega := 2 * math.Pi * freq / float64(f.ctx.sampleRate)
	cos := math.Cos(omega)
	alpha := math.Sin(omega) / (2 * q)
	a := math.Pow(10, gainDB/40)

	var b0, b1, b2, a0, a1, a2 float64
	switch f.typ {
	case Highpass:
		b0 = (1 + cos) / 2
		b1 = -(1 + cos)
		b2 = b0
		a0, a1, a2 = 1+alpha, -2*cos, 1-alpha
	case Bandpass:
		b0, b1, b2 = alpha, 0, -alpha
		a0, a1, a2 = 1+alpha, -2*cos, 1-alpha
	case Notch:
		b0, b1, b2 = 1, -2*cos, 1
		a0, a1, a2 = 1+alpha, -2*cos, 1-alpha
	case Peaking:
		b0, b1, b2 = 1+alpha*a, -2*cos, 1-alpha*a
		a0, a1, a2 = 1+alpha/a, -2*cos, 1-alpha/a
	default:
		b0 = (1 - cos) / 2
		b1 = 1 - cos
		b2 = b0
		a0, a1, a2 = 1+alpha, -2*cos, 1-alpha
	}
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = a1/a0, a2/a0
}
